// Package storage abstracts the durable object store holding uploaded and
// translated documents.
package storage

import "context"

// Store is the collaborator contract consumed by the worker. Store must
// upsert: retried jobs re-upload to the same derived path.
type Store interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
}
