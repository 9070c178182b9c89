package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fileshare/internal/model"
	"fileshare/internal/repository"
)

// FilePostgres is a PostgreSQL implementation of repository.FileRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type FilePostgres struct {
	db *sql.DB
}

// NewFilePostgres creates a new FilePostgres repository.
func NewFilePostgres(db *sql.DB) *FilePostgres {
	return &FilePostgres{db: db}
}

var _ repository.FileRepository = (*FilePostgres)(nil)

// Create inserts the row in a short transaction; upload_date comes from the database clock.
func (r *FilePostgres) Create(ctx context.Context, rec *model.FileRecord) (out *model.FileRecord, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const q = `
		INSERT INTO files (id, filename, path, url, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING upload_date
	`
	stored := *rec
	if err = tx.QueryRowContext(ctx, q,
		rec.ID,
		rec.Filename,
		rec.Path,
		rec.URL,
		nullString(rec.PasswordHash),
	).Scan(&stored.UploadDate); err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &stored, nil
}

// FindByID fetches a single file record by its ID.
func (r *FilePostgres) FindByID(ctx context.Context, id string) (*model.FileRecord, error) {
	const q = `
		SELECT id, filename, path, url, password_hash, upload_date
		FROM files
		WHERE id = $1
	`
	var (
		f    model.FileRecord
		hash sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&f.ID,
		&f.Filename,
		&f.Path,
		&f.URL,
		&hash,
		&f.UploadDate,
	); err != nil {
		return nil, err
	}
	if hash.Valid {
		f.PasswordHash = &hash.String
	}
	return &f, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
