// Package fetch defines core types shared across the ingestion subsystems.
package fetch

import (
	"time"
)

// SourceConfig describes one configured provider endpoint and its adapter
// binding. Loaded once at process start and immutable for the run, except for
// QueryFrom which the pipeline resolves and attaches before the adapter call.
type SourceConfig struct {
	Name        string `json:"name" mapstructure:"name"`
	Adapter     string `json:"adapter" mapstructure:"adapter"`
	URL         string `json:"url" mapstructure:"url"`
	Credentials string `json:"credentials,omitempty" mapstructure:"credentials"`
	Active      bool   `json:"active" mapstructure:"active"`

	// OffsetHours is how far back this source's query window starts. Zero
	// means no source-level constraint.
	OffsetHours int `json:"offset,omitempty" mapstructure:"offset"`

	// Static defaults applied to records that omit the field.
	Location   string `json:"location,omitempty" mapstructure:"location"`
	City       string `json:"city,omitempty" mapstructure:"city"`
	Country    string `json:"country,omitempty" mapstructure:"country"`
	SourceType string `json:"sourceType,omitempty" mapstructure:"source_type"`
	Mobile     bool   `json:"mobile,omitempty" mapstructure:"mobile"`

	// QueryFrom is the resolved start of the query window. Adapters that
	// support time-scoped queries read it; others ignore it.
	QueryFrom time.Time `json:"-" mapstructure:"-"`
}

// MeasurementDate pairs the UTC instant with the provider-local ISO string.
type MeasurementDate struct {
	UTC   time.Time `json:"utc"`
	Local string    `json:"local"`
}

// Coordinates is an optional lat/lon pair on a measurement.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AveragingPeriod describes the window a value was averaged over.
type AveragingPeriod struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Attribution credits the upstream publisher of a measurement.
type Attribution struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Measurement is the canonical record emitted by the pipeline. It is terminal:
// nothing downstream of the storage sink mutates it.
type Measurement struct {
	Parameter       string           `json:"parameter"`
	Value           float64          `json:"value"`
	Unit            string           `json:"unit"`
	Date            MeasurementDate  `json:"date"`
	Coordinates     *Coordinates     `json:"coordinates,omitempty"`
	Location        string           `json:"location"`
	City            string           `json:"city"`
	Country         string           `json:"country"`
	SourceName      string           `json:"sourceName"`
	SourceType      string           `json:"sourceType"`
	Mobile          bool             `json:"mobile"`
	AveragingPeriod *AveragingPeriod `json:"averagingPeriod,omitempty"`
	Attribution     []Attribution    `json:"attribution,omitempty"`
}

// Result is one item of a source's record stream: either a measurement or the
// cause of a per-record failure. Errors flow through the pipeline as values so
// one bad record never tears the stream down.
type Result struct {
	Measurement Measurement
	Err         error
}

// Ok reports whether the result carries a usable measurement.
func (r Result) Ok() bool { return r.Err == nil }

// Counts tracks per-source record statistics. Duplicates is carried in
// reports but never populated; no dedup stage exists yet.
type Counts struct {
	Total      int `json:"total"`
	Duplicates int `json:"duplicates"`
	Inserted   int `json:"inserted"`
}

// SourceRun is the live per-source run state: timing, counters, failure
// tallies, and the output stream. Created when the orchestrator begins a
// source, mutated by its pipeline, and frozen once the stream drains. Stream
// carries only records that survived normalization, validation, and the
// accepted-parameter filter; captured failures land in Failures instead.
type SourceRun struct {
	Source   SourceConfig
	Started  time.Time
	Ended    time.Time
	Counts   Counts
	Failures map[string]int
	Stream   <-chan Measurement

	// Done is closed by the run's producer once Counts, Failures, and Ended
	// are frozen. A consumer that stops draining Stream before it closes must
	// wait on Done before reading them.
	Done <-chan struct{}
}

// Duration returns the wall time between first access and stream end, or zero
// while the stream is still live.
func (s *SourceRun) Duration() time.Duration {
	if s.Started.IsZero() || s.Ended.IsZero() {
		return 0
	}
	return s.Ended.Sub(s.Started)
}

// Summary freezes the run into its report entry.
func (s *SourceRun) Summary() SourceSummary {
	return SourceSummary{
		SourceName: s.Source.Name,
		Counts:     s.Counts,
		Duration:   s.Duration().Seconds(),
		Failures:   s.Failures,
	}
}

// SourceSummary is one source's line in the final report.
type SourceSummary struct {
	SourceName string         `json:"sourceName"`
	Counts     Counts         `json:"counts"`
	Duration   float64        `json:"duration"`
	Failures   map[string]int `json:"failures,omitempty"`
	Incomplete bool           `json:"incomplete,omitempty"`
}

// Report is the run-level aggregate handed to the notifier when an
// orchestrator invocation finishes.
type Report struct {
	ItemsInserted int             `json:"itemsInserted"`
	TimeStarted   time.Time       `json:"timeStarted"`
	TimeEnded     time.Time       `json:"timeEnded"`
	Results       []SourceSummary `json:"results"`
	Errors        map[string]int  `json:"errors"`
	DryRun        bool            `json:"dryRun,omitempty"`
}

// Deployment is a named subset selector the scheduler turns into one queue
// job. Stateless configuration.
type Deployment struct {
	Name       string `json:"name" mapstructure:"name"`
	Source     string `json:"source,omitempty" mapstructure:"source"`
	Adapter    string `json:"adapter,omitempty" mapstructure:"adapter"`
	Offset     int    `json:"offset,omitempty" mapstructure:"offset"`
	Resolution string `json:"resolution,omitempty" mapstructure:"resolution"`
}

// JobMessage is the body published to the work queue for one deployment and
// consumed by an independent orchestrator run.
type JobMessage struct {
	Name     string         `json:"name"`
	Sources  []SourceConfig `json:"sources"`
	Offset   int            `json:"offset,omitempty"`
	Datetime string         `json:"datetime,omitempty"`
	Suffix   string         `json:"suffix,omitempty"`
}
