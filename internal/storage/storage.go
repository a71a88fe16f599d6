// Package storage defines the Provider interface for object storage backends.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Provider abstracts durable object storage operations.
type Provider interface {
	// Put writes data to storage under the given key with the given content type.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the durable, publicly addressable URL for a key.
	PublicURL(key string) string
}
