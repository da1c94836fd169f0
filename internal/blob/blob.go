// Package blob stores binary artifacts (uploaded files, generated images)
// behind a small Store interface with GCS and in-memory implementations.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound signals that no object exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Object is a stored blob and its metadata.
type Object struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
}

// Store persists binary objects under opaque string keys.
type Store interface {
	// Put writes the contents of r under key, replacing any existing object.
	Put(ctx context.Context, key, contentType string, r io.Reader) error

	// Get opens the object under key. The caller must close Object.Reader.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (*Object, error)
}
