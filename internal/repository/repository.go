// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	"context"

	"fileshare/internal/model"
)

// FileRepository persists file records. Records are immutable once inserted,
// so there are no update or delete operations.
type FileRepository interface {
	// Create inserts rec inside its own transaction and returns the stored row,
	// including the server-assigned UploadDate.
	Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)

	// FindByID returns the record with the given id, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.FileRecord, error)
}
