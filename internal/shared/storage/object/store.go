package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// ObjectStore is a read-only source of previously uploaded archives.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
