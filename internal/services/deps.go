package services

import "context"

// BlobStore is the durable storage collaborator. Keys are hierarchical
// strings partitioned by stage prefix, run ID and page number, so
// concurrent runs and pages never write the same key. gcp.Store is the
// production implementation.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, content []byte, contentType string) error
	URI(key string) string
	KeyFromURI(uri string) string
}
