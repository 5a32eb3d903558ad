// Package orchestrator drives a full fetch invocation: source selection,
// bounded-concurrency pipeline execution, report aggregation, and the
// wall-clock watchdog.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/metrics"
	"github.com/aeropoint/aqfetch/internal/pipeline"
	"github.com/aeropoint/aqfetch/internal/storage"
)

const defaultMaxInFlight = 1024

// producerGrace bounds how long a summary waits for its pipeline goroutine
// after cancellation.
const producerGrace = 5 * time.Second

// ErrStrictFailure aborts the invocation when strict mode sees its first
// source failure.
var ErrStrictFailure = errors.New("strict mode: aborting on first failure")

// Config carries the run-level knobs for one invocation.
type Config struct {
	// MaxInFlight bounds how many sources run concurrently. The default is
	// effectively unbounded but capped.
	MaxInFlight int

	// BufferSize bounds each source's output channel.
	BufferSize int

	// Strict aborts the whole run on the first source failure instead of
	// isolating it.
	Strict bool

	// DryRun drains every stream without writing storage; nothing counts as
	// inserted.
	DryRun bool

	// Datetime is the explicit query-window override for the run.
	Datetime time.Time

	// OffsetHours is the run-level hours-ago fallback window.
	OffsetHours int

	// Suffix disambiguates this run's storage object. A fresh UUID is used
	// when empty.
	Suffix string

	// Timeout is the wall-clock budget for the invocation; zero disables the
	// watchdog.
	Timeout time.Duration
}

// Orchestrator owns the cross-source state of one invocation: the adapter
// registry, the status table, and the aggregate report.
type Orchestrator struct {
	registry *fetch.Registry
	sink     *storage.Sink
	status   *StatusTable
	cfg      Config
	clock    fetch.Clock
	logger   *zap.Logger
}

// New constructs an Orchestrator. status may be shared with a status server;
// pass a fresh table otherwise.
func New(registry *fetch.Registry, sink *storage.Sink, status *StatusTable, cfg Config, clock fetch.Clock, logger *zap.Logger) *Orchestrator {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if status == nil {
		status = NewStatusTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: registry,
		sink:     sink,
		status:   status,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}
}

// Status exposes the shared status table for introspection.
func (o *Orchestrator) Status() *StatusTable { return o.status }

// Run executes one invocation over the configured source list. Record- and
// source-level failures are recovered locally and surfaced in the report;
// only whole-run conditions (no sources, strict failure, watchdog timeout)
// return an error. A canceled parent context flushes in-flight work and
// returns the partial report without error.
func (o *Orchestrator) Run(ctx context.Context, sources []fetch.SourceConfig, sel Selector) (*fetch.Report, error) {
	selected, err := SelectSources(sources, sel)
	if err != nil {
		return nil, err
	}
	return o.RunSelected(ctx, selected)
}

// RunSelected executes an invocation over an already-selected source list,
// as delivered in a queue job. Selection happened at scheduling time, so the
// list may legitimately include an explicitly-requested inactive source.
func (o *Orchestrator) RunSelected(ctx context.Context, selected []fetch.SourceConfig) (*fetch.Report, error) {
	if len(selected) == 0 {
		return nil, fetch.ErrNoSourcesFound
	}

	started := o.now()
	report := &fetch.Report{
		TimeStarted: started,
		Errors:      make(map[string]int),
		DryRun:      o.cfg.DryRun,
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	suffix := o.cfg.Suffix
	if suffix == "" {
		suffix = uuid.NewString()
	}
	objectName := storage.ObjectName(started, suffix)

	merged := make(chan fetch.Measurement, o.cfg.MaxInFlight)
	var (
		sinkWG   sync.WaitGroup
		inserted int
		sinkErr  error
	)
	sinkWG.Add(1)
	go func() {
		defer sinkWG.Done()
		if o.cfg.DryRun {
			for range merged {
			}
			return
		}
		inserted, sinkErr = o.sink.Drain(runCtx, objectName, merged)
		// A sink that died mid-upload must not strand producers blocked on
		// the merged channel; keep discarding until they finish.
		for range merged {
		}
	}()

	var (
		mu        sync.Mutex
		strictErr error
		sem       = make(chan struct{}, o.cfg.MaxInFlight)
		wg        sync.WaitGroup
	)
	for _, src := range selected {
		o.status.Set(src.Name, PhasePending)
	}
	for _, src := range selected {
		wg.Add(1)
		go func(src fetch.SourceConfig) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				// Never started; report it as a cut-off zero-count entry.
				mu.Lock()
				report.Results = append(report.Results, fetch.SourceSummary{
					SourceName: src.Name,
					Incomplete: true,
				})
				mu.Unlock()
				return
			}

			summary := o.runSource(runCtx, src, merged)

			mu.Lock()
			report.Results = append(report.Results, summary)
			for cause, n := range summary.Failures {
				report.Errors[cause] += n
			}
			if o.cfg.Strict && strictErr == nil && len(summary.Failures) > 0 {
				strictErr = fmt.Errorf("%w: source %q", ErrStrictFailure, src.Name)
				cancel()
			}
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	close(merged)
	sinkWG.Wait()

	report.TimeEnded = o.now()
	if !o.cfg.DryRun {
		report.ItemsInserted = inserted
		if sinkErr != nil {
			report.Errors[sinkErr.Error()]++
			o.logger.Error("storage sink failed",
				zap.String("object", objectName),
				zap.Error(sinkErr),
			)
		}
	}

	if strictErr != nil {
		return report, strictErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return report, fmt.Errorf("invocation exceeded %s budget: %w", o.cfg.Timeout, runCtx.Err())
	}
	return report, nil
}

// runSource drives one source's pipeline to completion, forwarding its stream
// into the shared sink channel, and returns the frozen summary.
func (o *Orchestrator) runSource(ctx context.Context, src fetch.SourceConfig, merged chan<- fetch.Measurement) fetch.SourceSummary {
	o.status.Set(src.Name, PhaseStarted)
	metrics.SourcesInFlight.Inc()
	defer metrics.SourcesInFlight.Dec()

	run := pipeline.Run(ctx, o.registry, src, pipeline.Options{
		Datetime:    o.cfg.Datetime,
		OffsetHours: o.cfg.OffsetHours,
		BufferSize:  o.cfg.BufferSize,
		Clock:       o.clock,
		Logger:      o.logger,
	})

	forwarded := 0
drain:
	for m := range run.Stream {
		select {
		case merged <- m:
			forwarded++
		case <-ctx.Done():
			break drain
		}
	}

	// The pipeline goroutine owns the counters until Done closes. On the
	// cancellation path it winds down within one record; the grace period
	// only guards against an adapter that ignores cancellation entirely.
	select {
	case <-run.Done:
	case <-time.After(producerGrace):
		o.logger.Warn("source pipeline did not stop after cancellation",
			zap.String("source", src.Name),
		)
		metrics.SourcesTotal.WithLabelValues("failed").Inc()
		return fetch.SourceSummary{SourceName: src.Name, Incomplete: true}
	}
	if !o.cfg.DryRun {
		run.Counts.Inserted = forwarded
	}

	summary := run.Summary()
	if ctx.Err() != nil {
		// Watchdog or shutdown hit while this source was in flight.
		summary.Incomplete = true
	} else {
		o.status.Set(src.Name, PhaseFinished)
	}

	failed := 0
	for _, n := range summary.Failures {
		failed += n
	}
	metrics.MeasurementsTotal.WithLabelValues(src.Name).Add(float64(summary.Counts.Total))
	metrics.MeasurementsInserted.WithLabelValues(src.Name).Add(float64(summary.Counts.Inserted))
	metrics.FailuresTotal.WithLabelValues(src.Name).Add(float64(failed))
	if failed > 0 {
		metrics.SourcesTotal.WithLabelValues("failed").Inc()
	} else {
		metrics.SourcesTotal.WithLabelValues("ok").Inc()
	}

	o.logger.Info("source finished",
		zap.String("source", src.Name),
		zap.Int("total", summary.Counts.Total),
		zap.Int("inserted", summary.Counts.Inserted),
		zap.Int("failures", failed),
		zap.Float64("duration_s", summary.Duration),
	)
	return summary
}

func (o *Orchestrator) now() time.Time {
	if o.clock != nil {
		return o.clock.Now()
	}
	return time.Now().UTC()
}
