package storage

import (
	"errors"
	"io"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds exported report snapshots.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	List(prefix string) ([]string, error)
}
