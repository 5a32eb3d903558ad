// Package pipeline wraps one source's raw adapter output with the
// normalize, validate, filter, and error-capture stages.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/measurement"
)

const defaultBufferSize = 256

// Options carries the run-level knobs that shape one source's query window
// and stream buffering.
type Options struct {
	// Datetime is an explicit run-level window override. Takes precedence
	// over every offset.
	Datetime time.Time

	// OffsetHours is the run-level hours-ago fallback, used only when the
	// source has no offset of its own.
	OffsetHours int

	// BufferSize bounds the output channel; a slow consumer stalls the
	// producer once the buffer fills.
	BufferSize int

	Clock  fetch.Clock
	Logger *zap.Logger
}

// Run resolves the source's adapter, computes its query window, and starts
// the per-source stream. The returned SourceRun is live: its Stream must be
// drained, after which its counters and failure tallies are frozen.
//
// Every failure mode is captured on the run rather than returned: a source
// whose adapter cannot be resolved, or whose fetch fails before producing any
// record, still yields a SourceRun with zero counts and exactly one failure
// cause, so it shows up in the report instead of vanishing.
func Run(ctx context.Context, registry *fetch.Registry, src fetch.SourceConfig, opts Options) *fetch.SourceRun {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make(chan fetch.Measurement, opts.BufferSize)
	done := make(chan struct{})
	run := &fetch.SourceRun{
		Source:   src,
		Started:  now(opts.Clock),
		Failures: make(map[string]int),
		Stream:   out,
		Done:     done,
	}

	src.QueryFrom = resolveWindow(src, opts)

	go func() {
		defer func() {
			run.Ended = now(opts.Clock)
			close(out)
			close(done)
		}()

		adapter, err := registry.Resolve(src.Adapter)
		if err != nil {
			capture(run, err)
			logger.Warn("adapter resolution failed",
				zap.String("source", src.Name),
				zap.String("adapter", src.Adapter),
				zap.Error(err),
			)
			return
		}

		raw, err := openStream(ctx, adapter, src)
		if err != nil {
			capture(run, &fetch.AdapterError{Source: src.Name, Err: err})
			logger.Warn("fetch failed before any record",
				zap.String("source", src.Name),
				zap.Error(err),
			)
			return
		}

		for result := range raw {
			if ctx.Err() != nil {
				return
			}
			if result.Err != nil {
				capture(run, &fetch.AdapterError{Source: src.Name, Err: result.Err})
				continue
			}
			run.Counts.Total++

			m := measurement.Normalize(result.Measurement, src)
			if verr := measurement.Validate(m); verr != nil {
				capture(run, verr)
				continue
			}
			if !measurement.Accepted(m.Parameter) {
				// Outside the accepted set: dropped, not a failure.
				continue
			}

			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	return run
}

// openStream drives whichever capability the adapter exposes, materializing a
// batch adapter's single result into the stream abstraction at the boundary.
func openStream(ctx context.Context, adapter fetch.Adapter, src fetch.SourceConfig) (<-chan fetch.Result, error) {
	if streamer, ok := adapter.(fetch.StreamFetcher); ok {
		return streamer.FetchStream(ctx, src)
	}
	batcher, ok := adapter.(fetch.BatchFetcher)
	if !ok {
		// The registry rejects capability-less adapters; this guards direct
		// callers that bypass it.
		return nil, fetch.ErrAdapterModuleInvalid
	}
	measurements, err := batcher.FetchBatch(ctx, src)
	if err != nil {
		return nil, err
	}
	ch := make(chan fetch.Result, len(measurements))
	for _, m := range measurements {
		ch <- fetch.Result{Measurement: m}
	}
	close(ch)
	return ch, nil
}

// resolveWindow picks the query window start with one canonical precedence:
// explicit run datetime, then source offset, then run offset, then none.
func resolveWindow(src fetch.SourceConfig, opts Options) time.Time {
	switch {
	case !opts.Datetime.IsZero():
		return opts.Datetime
	case src.OffsetHours > 0:
		return now(opts.Clock).Add(-time.Duration(src.OffsetHours) * time.Hour)
	case opts.OffsetHours > 0:
		return now(opts.Clock).Add(-time.Duration(opts.OffsetHours) * time.Hour)
	default:
		return time.Time{}
	}
}

func capture(run *fetch.SourceRun, err error) {
	run.Failures[fetch.CauseKey(err)]++
}

func now(c fetch.Clock) time.Time {
	if c != nil {
		return c.Now()
	}
	return time.Now().UTC()
}
