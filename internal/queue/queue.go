// Package queue defines the work queue carrying scheduler jobs to
// orchestrator workers. The abstraction keeps the scheduler independent of a
// specific broker (GCP Pub/Sub in production, an in-memory channel locally).
package queue

import (
	"context"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Publisher sends one job message per scheduled deployment.
type Publisher interface {
	// Publish serializes the job and sends it, returning the broker's
	// message ID.
	Publish(ctx context.Context, job fetch.JobMessage) (string, error)

	// Close cleans up client connections and resources.
	Close() error
}

// Consumer delivers job messages to a handler until the context ends.
type Consumer interface {
	Receive(ctx context.Context, handle func(context.Context, fetch.JobMessage) error) error
}

// NoOpPublisher drops every message. Useful for dry scheduling runs.
type NoOpPublisher struct{}

// Publish does nothing and returns an empty ID.
func (n *NoOpPublisher) Publish(_ context.Context, _ fetch.JobMessage) (string, error) {
	return "", nil
}

// Close does nothing.
func (n *NoOpPublisher) Close() error { return nil }
