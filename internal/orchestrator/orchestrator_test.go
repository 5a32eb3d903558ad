package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/storage"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// cannedAdapter serves a fixed batch per source name.
type cannedAdapter struct {
	batches map[string][]fetch.Measurement
	errs    map[string]error
	delay   time.Duration
}

func (a *cannedAdapter) Name() string { return "canned" }

func (a *cannedAdapter) FetchBatch(ctx context.Context, src fetch.SourceConfig) ([]fetch.Measurement, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := a.errs[src.Name]; err != nil {
		return nil, err
	}
	return a.batches[src.Name], nil
}

func record(param string, value float64) fetch.Measurement {
	return fetch.Measurement{
		Parameter: param,
		Value:     value,
		Unit:      "µg/m³",
		Date:      fetch.MeasurementDate{Local: "2025-03-01T08:00:00Z"},
		Location:  "Main St",
		City:      "Springfield",
		Country:   "US",
	}
}

func records(n int) []fetch.Measurement {
	out := make([]fetch.Measurement, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record("pm25", float64(i+1)))
	}
	return out
}

func newRegistry(t *testing.T, adapter fetch.Adapter) *fetch.Registry {
	t.Helper()
	r := fetch.NewRegistry()
	require.NoError(t, r.Register("canned", func() (fetch.Adapter, error) { return adapter, nil }))
	return r
}

func newOrchestrator(t *testing.T, adapter fetch.Adapter, cfg Config) (*Orchestrator, *storage.MemoryProvider) {
	t.Helper()
	provider := storage.NewMemoryProvider()
	sink := storage.NewSink(provider, zap.NewNop())
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(newRegistry(t, adapter), sink, nil, cfg, clock, zap.NewNop()), provider
}

func activeSource(name string) fetch.SourceConfig {
	return fetch.SourceConfig{Name: name, Adapter: "canned", Active: true}
}

func TestRunWetInsertsAndUploads(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{batches: map[string][]fetch.Measurement{
		"alpha": records(4),
		"bravo": records(3),
	}}
	o, provider := newOrchestrator(t, adapter, Config{Suffix: "run-1"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("alpha"), activeSource("bravo")}, Selector{})
	require.NoError(t, err)
	require.Equal(t, 7, report.ItemsInserted)
	require.Len(t, report.Results, 2)
	require.Empty(t, report.Errors)
	require.False(t, report.DryRun)

	data, ok := provider.Object("realtime/2025-03-01/run-1.ndjson")
	require.True(t, ok)
	require.Equal(t, 1, provider.Len())

	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var m fetch.Measurement
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		require.Equal(t, "pm25", m.Parameter)
		lines++
	}
	require.Equal(t, 7, lines)

	require.Equal(t, PhaseFinished, o.Status().Get("alpha"))
	require.Equal(t, PhaseFinished, o.Status().Get("bravo"))
}

func TestRunDryRunCommitsNothing(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{batches: map[string][]fetch.Measurement{
		"alpha": records(7),
	}}
	o, provider := newOrchestrator(t, adapter, Config{DryRun: true, Suffix: "dry"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("alpha")}, Selector{})
	require.NoError(t, err)
	require.True(t, report.DryRun)
	require.Equal(t, 0, report.ItemsInserted)
	require.Len(t, report.Results, 1)
	require.Equal(t, 7, report.Results[0].Counts.Total)
	require.Equal(t, 0, report.Results[0].Counts.Inserted)
	require.Equal(t, 0, provider.Len())
}

func TestRunIsolatesSourceFailure(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{
		batches: map[string][]fetch.Measurement{"alpha": records(2)},
		errs:    map[string]error{"bravo": errors.New("gateway timeout")},
	}
	o, _ := newOrchestrator(t, adapter, Config{Suffix: "mixed"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("alpha"), activeSource("bravo")}, Selector{})
	require.NoError(t, err)
	require.Equal(t, 2, report.ItemsInserted)
	require.Equal(t, map[string]int{"gateway timeout": 1}, report.Errors)

	byName := map[string]fetch.SourceSummary{}
	for _, s := range report.Results {
		byName[s.SourceName] = s
	}
	require.Equal(t, 2, byName["alpha"].Counts.Inserted)
	require.Equal(t, 0, byName["bravo"].Counts.Total)
	require.Equal(t, map[string]int{"gateway timeout": 1}, byName["bravo"].Failures)
}

func TestRunStrictAbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{errs: map[string]error{"bravo": errors.New("boom")}}
	o, _ := newOrchestrator(t, adapter, Config{Strict: true, Suffix: "strict"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("bravo")}, Selector{})
	require.ErrorIs(t, err, ErrStrictFailure)
	require.NotNil(t, report)
	require.Equal(t, map[string]int{"boom": 1}, report.Errors)
}

func TestRunEmptyStreamSurfacesInReport(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{}
	o, provider := newOrchestrator(t, adapter, Config{Suffix: "empty"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("alpha")}, Selector{})
	require.NoError(t, err)
	require.Equal(t, 0, report.ItemsInserted)
	require.Equal(t, 1, report.Errors[storage.ErrEmptyUpload.Error()])
	require.Equal(t, 0, provider.Len())
}

func TestRunTimeoutMarksIncomplete(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{
		batches: map[string][]fetch.Measurement{"slow": records(1)},
		delay:   2 * time.Second,
	}
	o, _ := newOrchestrator(t, adapter, Config{Timeout: 50 * time.Millisecond, Suffix: "slow"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("slow")}, Selector{})
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, report.Results, 1)
	require.True(t, report.Results[0].Incomplete)
}

func TestRunCanceledParentReturnsPartialWithoutError(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{
		batches: map[string][]fetch.Measurement{"slow": records(1)},
		delay:   2 * time.Second,
	}
	o, _ := newOrchestrator(t, adapter, Config{Suffix: "interrupted"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	report, err := o.Run(ctx, []fetch.SourceConfig{activeSource("slow")}, Selector{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.True(t, report.Results[0].Incomplete)
}

func TestRunSelectionFailureIsFatal(t *testing.T) {
	t.Parallel()

	o, _ := newOrchestrator(t, &cannedAdapter{}, Config{})
	_, err := o.Run(context.Background(), nil, Selector{})
	require.ErrorIs(t, err, fetch.ErrNoSourcesFound)
}

// brokenWriteProvider opens writers that fail on the first write, like a GCS
// upload dying mid-stream.
type brokenWriteProvider struct{ err error }

func (p *brokenWriteProvider) NewWriter(context.Context, string) (io.WriteCloser, error) {
	return &brokenWriter{err: p.err}, nil
}

type brokenWriter struct{ err error }

func (w *brokenWriter) Write([]byte) (int, error) { return 0, w.err }

func (w *brokenWriter) Close() error { return nil }

func TestRunSinkFailureDoesNotStallProducers(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{batches: map[string][]fetch.Measurement{
		"alpha": records(8),
	}}
	sink := storage.NewSink(&brokenWriteProvider{err: errors.New("disk full")}, zap.NewNop())
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	// MaxInFlight 1 keeps the merged buffer tiny, so a dead sink would leave
	// the producer blocked mid-send if nothing kept draining.
	o := New(newRegistry(t, adapter), sink, nil, Config{MaxInFlight: 1, Suffix: "broken"}, clock, zap.NewNop())

	type outcome struct {
		report *fetch.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("alpha")}, Selector{})
		done <- outcome{report, err}
	}()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		require.Equal(t, 0, got.report.ItemsInserted)
		require.Len(t, got.report.Errors, 1)
		for cause := range got.report.Errors {
			require.Contains(t, cause, "encode measurement")
			require.Contains(t, cause, "disk full")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run stalled after the sink died")
	}
}

// floodAdapter streams records until canceled; odd records are invalid so the
// failure tallies churn alongside the forwarded stream.
type floodAdapter struct{}

func (floodAdapter) Name() string { return "canned" }

func (floodAdapter) FetchStream(ctx context.Context, _ fetch.SourceConfig) (<-chan fetch.Result, error) {
	ch := make(chan fetch.Result)
	go func() {
		defer close(ch)
		for i := 0; ; i++ {
			m := record("pm25", float64(i))
			if i%2 == 1 {
				m.Unit = ""
			}
			select {
			case ch <- fetch.Result{Measurement: m}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func TestRunCanceledMidStreamFreezesCountersBeforeSummary(t *testing.T) {
	t.Parallel()

	provider := storage.NewMemoryProvider()
	sink := storage.NewSink(provider, zap.NewNop())
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	o := New(newRegistry(t, floodAdapter{}), sink, nil, Config{BufferSize: 1, Suffix: "cut"}, clock, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	report, err := o.Run(ctx, []fetch.SourceConfig{activeSource("alpha")}, Selector{})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	// The summary is a frozen snapshot, not a view of a still-live run.
	summary := report.Results[0]
	require.True(t, summary.Incomplete)
	failed := 0
	for _, n := range summary.Failures {
		failed += n
	}
	require.GreaterOrEqual(t, summary.Counts.Total, summary.Counts.Inserted+failed)
}

func TestRunTimeoutMarksNeverStartedSourcesIncomplete(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{
		batches: map[string][]fetch.Measurement{"slow": records(1), "queued": records(1)},
		delay:   2 * time.Second,
	}
	// One slot: the second source waits on the semaphore until the watchdog
	// fires and must still show up as cut off.
	o, _ := newOrchestrator(t, adapter, Config{MaxInFlight: 1, Timeout: 50 * time.Millisecond, Suffix: "starved"})

	report, err := o.Run(context.Background(), []fetch.SourceConfig{activeSource("slow"), activeSource("queued")}, Selector{})
	require.Error(t, err)
	require.Len(t, report.Results, 2)
	for _, summary := range report.Results {
		require.True(t, summary.Incomplete, summary.SourceName)
	}
}

func TestRunSelectedAcceptsInactiveSources(t *testing.T) {
	t.Parallel()

	adapter := &cannedAdapter{batches: map[string][]fetch.Measurement{"off": records(1)}}
	o, _ := newOrchestrator(t, adapter, Config{Suffix: "job"})

	inactive := fetch.SourceConfig{Name: "off", Adapter: "canned", Active: false}
	report, err := o.RunSelected(context.Background(), []fetch.SourceConfig{inactive})
	require.NoError(t, err)
	require.Equal(t, 1, report.ItemsInserted)
}
