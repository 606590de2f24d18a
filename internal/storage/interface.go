package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned by Open when no object is stored under the key.
var ErrNotExist = errors.New("storage: object does not exist")

// Storage holds opaque blobs: asset photos referenced by photo_ref and the
// cached renderings of derived artifacts.
type Storage interface {
	// DownloadURL returns an address a client can fetch the object from.
	DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Exists reports whether an object is stored under key, and its size.
	Exists(ctx context.Context, key string) (exists bool, size int64, err error)

	Delete(ctx context.Context, key string) error

	Save(ctx context.Context, key string, r io.Reader) error

	// Open returns ErrNotExist (wrapped) when the key is absent.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
