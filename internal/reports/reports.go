// Package reports persists completed fetch reports. The interface decouples
// the worker loop from Postgres so local runs need no database.
package reports

import (
	"context"

	"github.com/aeropoint/aqfetch/internal/fetch"
)

// Store persists one row per completed orchestrator run.
type Store interface {
	// SaveReport records the finished report under its deployment name.
	SaveReport(ctx context.Context, deployment string, report *fetch.Report) error

	// Close releases any underlying resources.
	Close()
}

// NoOpStore discards reports. Used when no database is configured.
type NoOpStore struct{}

// SaveReport does nothing.
func (NoOpStore) SaveReport(_ context.Context, _ string, _ *fetch.Report) error { return nil }

// Close does nothing.
func (NoOpStore) Close() {}
