package storage

import (
	"errors"
	"io"
)

var ErrBadKey = errors.New("storage: invalid key")

// BlobStore holds theory slide images, addressed by slash-separated keys.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}
