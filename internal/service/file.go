package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"fileshare/internal/logger"
	"fileshare/internal/model"
	"fileshare/internal/password"
	"fileshare/internal/repository"
	"fileshare/internal/storage"
)

const (
	component = "file_service"
	// maxNameAttempts bounds retries when a generated storage name is already taken.
	maxNameAttempts = 3
	cleanupTimeout  = 10 * time.Second
	fallbackName    = "file"
)

// UploadResult is what the uploader gets back: only the share URL.
type UploadResult struct {
	FileURL string `json:"fileUrl"`
}

// FileStream is an opened payload ready to be sent to the client.
// The caller must close Body.
type FileStream struct {
	Filename string
	Size     int64
	Body     io.ReadCloser
}

// FileService defines the upload and download use cases.
type FileService interface {
	// Upload stores the payload, records its metadata and returns the share URL.
	// The payload file and the record are created together or not at all.
	Upload(ctx context.Context, r io.Reader, originalFilename string, size int64, pass string) (*UploadResult, error)

	// CheckPassword reports whether downloading id requires a password.
	CheckPassword(ctx context.Context, id string) (bool, error)

	// Download opens a public file. Protected files fail with ErrPasswordRequired.
	Download(ctx context.Context, id string) (*FileStream, error)

	// DownloadWithPassword opens a protected file after checking pass.
	DownloadWithPassword(ctx context.Context, id, pass string) (*FileStream, error)
}

// Option customizes a file service.
type Option func(*fileService)

// WithStorageNamer overrides how storage names are generated.
func WithStorageNamer(n StorageNamer) Option {
	return func(s *fileService) { s.newName = n }
}

// WithIDGenerator overrides how public identifiers are generated.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *fileService) { s.newID = g }
}

// WithLogger sets the logger used for rollback and integrity events.
func WithLogger(l *logger.Logger) Option {
	return func(s *fileService) { s.log = l }
}

type fileService struct {
	store   storage.Storage
	repo    repository.FileRepository
	hasher  password.Hasher
	baseURL string
	newName StorageNamer
	newID   IDGenerator
	log     *logger.Logger
}

// NewFileService constructs a FileService. baseURL prefixes every share URL.
func NewFileService(store storage.Storage, repo repository.FileRepository, hasher password.Hasher, baseURL string, opts ...Option) FileService {
	s := &fileService{
		store:   store,
		repo:    repo,
		hasher:  hasher,
		baseURL: strings.TrimRight(baseURL, "/"),
		newName: NewStorageNamer(nil),
		newID:   NewIDGenerator(nil),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *fileService) Upload(ctx context.Context, r io.Reader, originalFilename string, size int64, pass string) (*UploadResult, error) {
	if r == nil || size == 0 {
		return nil, ErrNoFile
	}

	var hash *string
	if pass != "" {
		h, err := s.hasher.Hash(pass)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	filename := cleanFilename(originalFilename)
	info, err := s.put(ctx, r, filename, size)
	if err != nil {
		return nil, err
	}

	// Nothing may be recorded for a payload that did not arrive in full.
	if size > 0 && info.Size != size {
		s.discard(ctx, id, info.Key, "incomplete_payload")
		return nil, fmt.Errorf("%w: received %d of %d bytes", ErrStorageWrite, info.Size, size)
	}
	if err := ctx.Err(); err != nil {
		s.discard(ctx, id, info.Key, "upload_aborted")
		return nil, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}

	rec := &model.FileRecord{
		ID:           id,
		Filename:     filename,
		Path:         info.Key,
		URL:          s.baseURL + "/download/" + id,
		PasswordHash: hash,
	}
	if _, err := s.repo.Create(ctx, rec); err != nil {
		s.discard(ctx, id, info.Key, "metadata_insert_failed")
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}

	s.log.Info(component, "file_uploaded", map[string]any{
		"file_id":           id,
		"size":              info.Size,
		"password_required": hash != nil,
	})
	return &UploadResult{FileURL: rec.URL}, nil
}

// put writes the payload under a fresh storage name, drawing another name if
// the first one is already taken.
func (s *fileService) put(ctx context.Context, r io.Reader, filename string, size int64) (storage.ObjectInfo, error) {
	opts := storage.PutObjectOptions{
		Size:        size,
		ContentType: "application/octet-stream",
	}
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := s.newName(filename)
		if err != nil {
			return storage.ObjectInfo{}, fmt.Errorf("%w: generate storage name: %w", ErrStorageWrite, err)
		}
		info, err := s.store.Put(ctx, name, r, opts)
		if errors.Is(err, storage.ErrObjectExists) {
			continue
		}
		if err != nil {
			return storage.ObjectInfo{}, fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}
		return info, nil
	}
	return storage.ObjectInfo{}, fmt.Errorf("%w: no free storage name after %d attempts", ErrStorageWrite, maxNameAttempts)
}

// discard removes a payload that must not outlive a failed upload. It runs even
// when ctx is already cancelled; if removal fails the path is logged for cleanup.
func (s *fileService) discard(ctx context.Context, id, key, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.store.Delete(cctx, key); err != nil {
		s.log.Error(component, "orphaned_file", err, map[string]any{
			"file_id": id,
			"path":    key,
			"reason":  reason,
		})
		return
	}
	s.log.Info(component, "upload_rolled_back", map[string]any{
		"file_id": id,
		"reason":  reason,
	})
}

func (s *fileService) CheckPassword(ctx context.Context, id string) (bool, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return rec.RequiresPassword(), nil
}

func (s *fileService) Download(ctx context.Context, id string) (*FileStream, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.RequiresPassword() {
		return nil, ErrPasswordRequired
	}
	return s.open(ctx, rec)
}

func (s *fileService) DownloadWithPassword(ctx context.Context, id, pass string) (*FileStream, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.RequiresPassword() {
		return nil, ErrPasswordNotRequired
	}
	if pass == "" {
		return nil, ErrPasswordRequired
	}
	ok, err := s.hasher.Verify(*rec.PasswordHash, pass)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", rec.ID, err)
	}
	if !ok {
		return nil, ErrInvalidPassword
	}
	return s.open(ctx, rec)
}

// lookup treats ids that are not UUIDs as unknown without querying the store.
func (s *fileService) lookup(ctx context.Context, id string) (*model.FileRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrMetadata, err)
	}
	return rec, nil
}

func (s *fileService) open(ctx context.Context, rec *model.FileRecord) (*FileStream, error) {
	rc, info, err := s.store.Get(ctx, rec.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Error(component, "integrity_fault", err, map[string]any{
				"file_id": rec.ID,
				"path":    rec.Path,
			})
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return &FileStream{Filename: rec.Filename, Size: info.Size, Body: rc}, nil
}

// cleanFilename keeps only the last path element a client sent and falls back
// to a generic name when nothing usable is left.
func cleanFilename(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}
