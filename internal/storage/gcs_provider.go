package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSProvider implements Provider on top of Google Cloud Storage.
// Authentication is handled via Application Default Credentials.
type GCSProvider struct {
	Client     *storage.Client
	BucketName string

	// ChunkBytes sets the resumable-upload chunk size: the writer flushes a
	// part to GCS every time this many bytes accumulate.
	ChunkBytes int
}

// NewGCSProvider initializes a GCS client and verifies the bucket is
// reachable, failing fast on bad configuration.
func NewGCSProvider(ctx context.Context, bucketName string, chunkBytes int) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	bkt := client.Bucket(bucketName)
	if _, err := bkt.Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, fmt.Errorf("get bucket %q attributes: %w (close client: %v)", bucketName, err, closeErr)
		}
		return nil, fmt.Errorf("get bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		Client:     client,
		BucketName: bucketName,
		ChunkBytes: chunkBytes,
	}, nil
}

// NewWriter opens a chunked streaming writer for the object. Data is flushed
// to GCS in ChunkBytes parts; the object becomes visible only on Close.
func (g *GCSProvider) NewWriter(ctx context.Context, objectName string) (io.WriteCloser, error) {
	if objectName == "" {
		return nil, fmt.Errorf("object name is required")
	}
	w := g.Client.Bucket(g.BucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if g.ChunkBytes > 0 {
		w.ChunkSize = g.ChunkBytes
	}
	return w, nil
}

// Close releases the underlying client.
func (g *GCSProvider) Close() error {
	if err := g.Client.Close(); err != nil {
		return fmt.Errorf("close GCS client: %w", err)
	}
	return nil
}
