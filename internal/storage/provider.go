// Package storage defines the blob storage provider used by the measurement
// sink. The abstraction keeps the pipeline independent of a specific backend
// (Google Cloud Storage in production, in-memory for tests and local runs).
package storage

import (
	"context"
	"io"
)

// Provider opens streaming writers into a blob store.
type Provider interface {
	// NewWriter opens a streaming writer for the named object. The object is
	// finalized on Close; an unclosed writer commits nothing.
	NewWriter(ctx context.Context, objectName string) (io.WriteCloser, error)
}

// NoOpProvider discards everything written to it. Useful for measuring
// throughput without any network write.
type NoOpProvider struct{}

// NewWriter returns a writer that discards all data.
func (n *NoOpProvider) NewWriter(_ context.Context, _ string) (io.WriteCloser, error) {
	return nopWriteCloser{}, nil
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
