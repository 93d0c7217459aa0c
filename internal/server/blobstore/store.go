// Package blobstore is the object-storage side of a payslip: PDF bytes
// addressed by storage key, independent of the metadata database.
package blobstore

import (
	"context"
	"io"
)

// Object is a blob to be written.
type Object struct {
	Key         string
	Body        []byte
	ContentType string
	// Metadata is stored alongside the object as user metadata.
	Metadata map[string]string
}

// Store is the narrow contract the services depend on.
type Store interface {
	Put(ctx context.Context, obj Object) error
	// Get streams the object; a missing key yields common.ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// URL resolves a time-limited reference that fetches the object.
	URL(ctx context.Context, key string) (string, error)
	Ping(ctx context.Context) error
}
