package fetch

import (
	"context"
	"time"
)

// Adapter is the contract every provider module satisfies. A usable adapter
// additionally implements BatchFetcher or StreamFetcher; callers never assume
// both.
type Adapter interface {
	Name() string
}

// BatchFetcher is the batch capability: one call producing the full slice of
// measurement-shaped records for a source.
type BatchFetcher interface {
	Adapter
	FetchBatch(ctx context.Context, source SourceConfig) ([]Measurement, error)
}

// StreamFetcher is the streaming capability: a lazily-pulled sequence of
// tagged results. The returned channel must be closed when the sequence ends.
type StreamFetcher interface {
	Adapter
	FetchStream(ctx context.Context, source SourceConfig) (<-chan Result, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
