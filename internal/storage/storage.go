// Package storage holds uploaded payloads. A payload is written once under an
// internally generated name and is never modified afterwards.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fileshare/internal/config"
)

var (
	// ErrObjectNotFound is returned when no payload exists at a location.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectExists is returned by Put when the name is already taken.
	ErrObjectExists = errors.New("object already exists")
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored payload.
// Key is the backend location to pass back to Get, Stat and Delete.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the payload store used by the upload and download paths.
// Implementations are safe for concurrent use.
type Storage interface {
	// Put writes r under name and fails with ErrObjectExists rather than overwrite.
	// On error nothing is left behind under name.
	Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get opens the payload at key for streaming.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat reports whether the payload at key exists.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes the payload at key. Deleting a missing payload is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Driver.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "disk":
		return NewDisk(cfg.Root)
	case "minio":
		return NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
