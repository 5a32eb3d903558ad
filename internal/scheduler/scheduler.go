// Package scheduler partitions configured deployments into independent queue
// jobs, one per deployment, so a lagging provider runs isolated from the
// realtime batch.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/orchestrator"
	"github.com/aeropoint/aqfetch/internal/queue"
)

// DefaultResolution is used for the invocation and for deployments that do
// not state their own.
const DefaultResolution = "hourly"

// Scheduler builds and publishes fetch jobs from static configuration.
type Scheduler struct {
	sources     []fetch.SourceConfig
	deployments []fetch.Deployment
	publisher   queue.Publisher
	logger      *zap.Logger
}

// New constructs a Scheduler over the configured sources and deployments.
func New(sources []fetch.SourceConfig, deployments []fetch.Deployment, publisher queue.Publisher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		sources:     sources,
		deployments: deployments,
		publisher:   publisher,
		logger:      logger,
	}
}

// Schedule publishes one job per deployment matching the invocation's
// resolution and returns how many jobs were published. With no deployments
// configured, a single catch-all deployment covers every active source. A
// deployment whose selector matches nothing is skipped with a warning rather
// than failing the rest.
func (s *Scheduler) Schedule(ctx context.Context, resolution string) (int, error) {
	if resolution == "" {
		resolution = DefaultResolution
	}
	deployments := s.deployments
	if len(deployments) == 0 {
		deployments = []fetch.Deployment{{Name: "all"}}
	}

	published := 0
	for _, d := range deployments {
		if deploymentResolution(d) != resolution {
			continue
		}

		subset, err := orchestrator.SelectSources(s.sources, orchestrator.Selector{
			Source:  d.Source,
			Adapter: d.Adapter,
		})
		if err != nil {
			if errors.Is(err, fetch.ErrNoSourcesFound) {
				s.logger.Warn("deployment matches no sources; skipping",
					zap.String("deployment", d.Name),
					zap.String("source", d.Source),
					zap.String("adapter", d.Adapter),
				)
				continue
			}
			return published, fmt.Errorf("select sources for deployment %q: %w", d.Name, err)
		}

		job := fetch.JobMessage{
			Name:    d.Name,
			Sources: subset,
			Offset:  d.Offset,
			Suffix:  d.Name,
		}
		id, err := s.publisher.Publish(ctx, job)
		if err != nil {
			return published, fmt.Errorf("publish job for deployment %q: %w", d.Name, err)
		}
		published++
		s.logger.Info("job published",
			zap.String("deployment", d.Name),
			zap.Int("sources", len(subset)),
			zap.Int("offset_hours", d.Offset),
			zap.String("message_id", id),
		)
	}
	return published, nil
}

func deploymentResolution(d fetch.Deployment) string {
	if d.Resolution == "" {
		return DefaultResolution
	}
	return d.Resolution
}
