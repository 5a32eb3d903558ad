package storage

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

	"github.com/aeropoint/aqfetch/internal/fetch"
)

func streamOf(measurements ...fetch.Measurement) <-chan fetch.Measurement {
	ch := make(chan fetch.Measurement, len(measurements))
	for _, m := range measurements {
		ch <- m
	}
	close(ch)
	return ch
}

func TestSinkDrainWritesNDJSON(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	sink := NewSink(provider, nil)

	count, err := sink.Drain(context.Background(), "realtime/2025-03-01/run.ndjson", streamOf(
		fetch.Measurement{Parameter: "pm25", Value: 10, Unit: "µg/m³"},
		fetch.Measurement{Parameter: "no2", Value: 0.04, Unit: "ppm"},
	))
	require.NoError(t, err)
	require.Equal(t, 2, count)

	data, ok := provider.Object("realtime/2025-03-01/run.ndjson")
	require.True(t, ok)

	var params []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var m fetch.Measurement
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		params = append(params, m.Parameter)
	}
	require.Equal(t, []string{"pm25", "no2"}, params)
}

func TestSinkDrainEmptyStreamCommitsNothing(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	sink := NewSink(provider, nil)

	count, err := sink.Drain(context.Background(), "realtime/2025-03-01/empty.ndjson", streamOf())
	require.ErrorIs(t, err, ErrEmptyUpload)
	require.Equal(t, 0, count)
	require.Equal(t, 0, provider.Len())
}

// failingProvider refuses to open writers.
type failingProvider struct{ err error }

func (p failingProvider) NewWriter(context.Context, string) (io.WriteCloser, error) {
	return nil, p.err
}

func TestSinkDrainWriterOpenFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("bucket gone")
	sink := NewSink(failingProvider{err: boom}, nil)

	count, err := sink.Drain(context.Background(), "obj", streamOf(fetch.Measurement{Parameter: "pm25"}))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, count)
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	// 23:30 EST is already March 2 in UTC; partitioning is UTC-based.
	require.Equal(t, "realtime/2025-03-02/abc.ndjson", ObjectName(day, "abc"))
}

func TestMemoryProviderCommitOnClose(t *testing.T) {
	t.Parallel()

	provider := NewMemoryProvider()
	w, err := provider.NewWriter(context.Background(), "obj")
	require.NoError(t, err)

	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	// Not visible until Close.
	_, ok := provider.Object("obj")
	require.False(t, ok)

	require.NoError(t, w.Close())
	data, ok := provider.Object("obj")
	require.True(t, ok)
	require.Equal(t, "partial", string(data))
}

func TestNoOpProvider(t *testing.T) {
	t.Parallel()

	w, err := (&NoOpProvider{}).NewWriter(context.Background(), "anything")
	require.NoError(t, err)
	_, err = w.Write([]byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}
