// Package blob abstracts the object storage that holds uploaded file
// contents. Metadata lives in the relational store; only raw bytes go
// through here, addressed by the file's blob key.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("blob: object not found")

// Object is a stored payload together with its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// Store is the minimal object-storage surface the file service needs.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
}
