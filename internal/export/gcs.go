package export

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSink uploads snapshots to a Cloud Storage bucket.
type GCSSink struct {
	client     *storage.Client
	bucketName string
}

// NewGCSSink creates a sink using application default credentials.
func NewGCSSink(ctx context.Context, bucketName string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSSink{client: client, bucketName: bucketName}, nil
}

// Put writes data to path and returns its gs:// URI.
func (s *GCSSink) Put(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	writer := s.client.Bucket(s.bucketName).Object(path).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-store"

	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write to storage: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucketName, path), nil
}

// Close releases the storage client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}
