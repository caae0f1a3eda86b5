package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrTooLarge           = errors.New("file exceeds the size limit")
	ErrInvalidKey         = errors.New("invalid storage key")
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Storage keeps the meter and pump photos attached to car operations.
// Local filesystem today; a bucket-backed implementation only needs these methods.
type Storage interface {
	// Save writes r under key and returns the number of bytes stored.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)

	// Open returns the stored file; callers close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error

	// URL is the download location served by the HTTP adapter.
	URL(key string) string
}
