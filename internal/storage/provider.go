package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by providers when a key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Provider defines the behavior for any storage backend. Keys are relative to
// the provider's bucket or root directory.
type Provider interface {
	Name() string
	Get(ctx context.Context, key string) (*FileObject, error)
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FileObject is the provider-agnostic representation of a file.
type FileObject struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}
