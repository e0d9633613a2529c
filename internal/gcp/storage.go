package gcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Store is a GCS-backed blob store scoped to one bucket. Keys are
// hierarchical strings (stage-prefix/run-id/filename); failures are errors,
// never silent.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a Store for the given bucket.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStore: bucket must not be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Get reads the full contents of the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Put writes content to the object at key only if it doesn't already exist.
// An existing object is not a failure: retried workflow steps must not
// clobber an earlier successful write.
func (s *Store) Put(ctx context.Context, key string, content []byte, contentType string) error {
	writer := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, bytes.NewReader(content)); err != nil {
		_ = writer.Close()
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Skipping write, object already exists.", "object", key)
			return nil
		}
		return fmt.Errorf("failed to write to gs://%s/%s: %w", s.bucket, key, err)
	}

	if err := writer.Close(); err != nil {
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 412 {
			slog.Info("Skipping write, object already exists.", "object", key)
			return nil
		}
		return fmt.Errorf("failed to finalize write to gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// URI returns the gs:// URI for a key in this store's bucket.
func (s *Store) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, key)
}

// KeyFromURI strips this store's bucket prefix from a gs:// URI, returning
// the bare object key. Keys are passed through unchanged.
func (s *Store) KeyFromURI(uri string) string {
	return strings.TrimPrefix(uri, fmt.Sprintf("gs://%s/", s.bucket))
}

// Bucket returns the bucket name the store writes to.
func (s *Store) Bucket() string { return s.bucket }
