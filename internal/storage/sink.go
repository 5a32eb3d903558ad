package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/aeropoint/aqfetch/internal/fetch"
	"github.com/aeropoint/aqfetch/internal/metrics"
)

// ErrEmptyUpload is returned when a source stream drains without producing a
// single record. Silent zero-record output is operationally indistinguishable
// from a silent outage, so it surfaces as an error instead of an empty object.
var ErrEmptyUpload = errors.New("no records streamed to storage")

// Sink serializes measurement streams as newline-delimited JSON into a blob
// storage provider.
type Sink struct {
	provider Provider
	logger   *zap.Logger
}

// NewSink wraps a storage provider.
func NewSink(provider Provider, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{provider: provider, logger: logger}
}

// Drain consumes the stream into the named object and returns how many
// records were written. The writer is opened lazily on the first record, so a
// stream that never produces one commits nothing and returns ErrEmptyUpload.
func (s *Sink) Drain(ctx context.Context, objectName string, stream <-chan fetch.Measurement) (int, error) {
	var (
		writer  interface{ Close() error }
		encoder *json.Encoder
		count   int
	)

	for m := range stream {
		if encoder == nil {
			w, err := s.provider.NewWriter(ctx, objectName)
			if err != nil {
				return 0, fmt.Errorf("open writer for %q: %w", objectName, err)
			}
			writer = w
			encoder = json.NewEncoder(&countingWriter{w: w})
		}
		if err := encoder.Encode(m); err != nil {
			_ = writer.Close()
			return count, fmt.Errorf("encode measurement: %w", err)
		}
		count++
	}

	if count == 0 {
		return 0, ErrEmptyUpload
	}
	if err := writer.Close(); err != nil {
		return count, fmt.Errorf("finalize object %q: %w", objectName, err)
	}
	s.logger.Debug("object finalized",
		zap.String("object", objectName),
		zap.Int("records", count),
	)
	return count, nil
}

// ObjectName builds the run-scoped object path: date-partitioned and
// suffix-disambiguated so concurrent invocations never collide.
func ObjectName(day time.Time, suffix string) string {
	return fmt.Sprintf("realtime/%s/%s.ndjson", day.UTC().Format("2006-01-02"), suffix)
}

// countingWriter feeds the upload byte counter as records are encoded.
type countingWriter struct {
	w io.Writer
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	metrics.UploadBytesTotal.Add(float64(n))
	return n, err
}
