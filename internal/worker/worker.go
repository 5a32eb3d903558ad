// Package worker consumes queue jobs and executes one orchestrator
// invocation per message.
package worker

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
	"github.com/aeropoint/aqfetch/internal/notify"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
	"github.com/aeropoint/aqfetch/internal/queue"
	"github.com/aeropoint/aqfetch/internal/reports"
	"github.com/aeropoint/aqfetch/internal/storage"
)

// Worker runs fetch jobs delivered on the work queue. Each job gets its own
// orchestrator built from the base config plus the job's offset, datetime,
// and suffix.
type Worker struct {
	registry *fetch.Registry
	sink     *storage.Sink
	consumer queue.Consumer
	status   *orchestrator.StatusTable
	store    reports.Store
	notifier notify.Notifier
	base     orchestrator.Config
	clock    fetch.Clock
	logger   *zap.Logger

	mu         sync.RWMutex
	lastReport *fetch.Report
}

// New constructs a Worker.
func New(
	registry *fetch.Registry,
	sink *storage.Sink,
	consumer queue.Consumer,
	status *orchestrator.StatusTable,
	store reports.Store,
	notifier notify.Notifier,
	base orchestrator.Config,
	clock fetch.Clock,
	logger *zap.Logger,
) *Worker {
	if status == nil {
		status = orchestrator.NewStatusTable()
	}
	if store == nil {
		store = reports.NoOpStore{}
	}
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: logger}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		registry: registry,
		sink:     sink,
		consumer: consumer,
		status:   status,
		store:    store,
		notifier: notifier,
		base:     base,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks, consuming jobs until the context finishes.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Receive(ctx, w.HandleJob)
}

// Status exposes the shared source status table.
func (w *Worker) Status() *orchestrator.StatusTable { return w.status }

// LastReport returns the most recently completed report, or nil.
func (w *Worker) LastReport() *fetch.Report {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastReport
}

// HandleJob executes one job. A returned error requests redelivery, so only
// transient conditions (the watchdog timeout) propagate; deterministic
// failures are logged and acknowledged.
func (w *Worker) HandleJob(ctx context.Context, job fetch.JobMessage) error {
	cfg := w.base
	if job.Offset > 0 {
		cfg.OffsetHours = job.Offset
	}
	if job.Datetime != "" {
		t, err := time.Parse(time.RFC3339, job.Datetime)
		if err != nil {
			metrics.JobsTotal.WithLabelValues("failed").Inc()
			w.logger.Error("job carries an unparseable datetime; dropping",
				zap.String("job", job.Name),
				zap.String("datetime", job.Datetime),
				zap.Error(err),
			)
			return nil
		}
		cfg.Datetime = t
	}
	cfg.Suffix = runSuffix(job)

	orch := orchestrator.New(w.registry, w.sink, w.status, cfg, w.clock, w.logger)
	report, err := orch.RunSelected(ctx, job.Sources)
	if report != nil {
		w.mu.Lock()
		w.lastReport = report
		w.mu.Unlock()
		w.deliver(ctx, job.Name, report)
	}
	if err != nil {
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		w.logger.Error("job failed", zap.String("job", job.Name), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		return nil
	}
	metrics.JobsTotal.WithLabelValues("ok").Inc()
	return nil
}

// deliver hands the report to the notifier and the report store. Neither
// failure affects the job outcome.
func (w *Worker) deliver(ctx context.Context, deployment string, report *fetch.Report) {
	if err := w.notifier.Notify(ctx, deployment, report); err != nil {
		w.logger.Warn("notify report failed", zap.String("job", deployment), zap.Error(err))
	}
	if err := w.store.SaveReport(ctx, deployment, report); err != nil {
		w.logger.Warn("persist report failed", zap.String("job", deployment), zap.Error(err))
	}
}

// runSuffix disambiguates the run's storage object across concurrent
// invocations of the same deployment.
func runSuffix(job fetch.JobMessage) string {
	base := job.Suffix
	if base == "" {
		base = job.Name
	}
	if base == "" {
		base = "run"
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}
