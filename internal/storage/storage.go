// Package storage keeps uploaded question images on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"io"
)

// ObjectStore persists an object under key and returns the URL clients use to fetch it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
