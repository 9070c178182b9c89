package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// diskStorage keeps each payload as a single file directly under root.
type diskStorage struct {
	root string
}

// NewDisk creates root if needed and returns a storage rooted there.
// Keys handed out by this backend are absolute file paths.
func NewDisk(root string) (Storage, error) {
	if root == "" {
		return nil, errors.New("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &diskStorage{root: abs}, nil
}

func (d *diskStorage) Put(ctx context.Context, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return ObjectInfo{}, fmt.Errorf("invalid object name %q", name)
	}
	path := filepath.Join(d.root, name)

	// O_EXCL: an existing payload is never truncated or reused.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ObjectInfo{}, ErrObjectExists
		}
		return ObjectInfo{}, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return ObjectInfo{}, fmt.Errorf("write file: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		_ = os.Remove(path)
		return ObjectInfo{}, fmt.Errorf("stat file: %w", err)
	}
	return ObjectInfo{
		Key:          path,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

func (d *diskStorage) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	path, err := d.resolve(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ObjectInfo{}, mapNotExist(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return f, ObjectInfo{Key: path, Size: st.Size(), LastModified: st.ModTime()}, nil
}

func (d *diskStorage) Stat(_ context.Context, key string) (ObjectInfo, error) {
	path, err := d.resolve(key)
	if err != nil {
		return ObjectInfo{}, err
	}
	st, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, mapNotExist(err)
	}
	if !st.Mode().IsRegular() {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ObjectInfo{Key: path, Size: st.Size(), LastModified: st.ModTime()}, nil
}

func (d *diskStorage) Delete(_ context.Context, key string) error {
	path, err := d.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// resolve accepts either an absolute path inside root or a bare name, and
// rejects anything that would escape root.
func (d *diskStorage) resolve(key string) (string, error) {
	path := key
	if !filepath.IsAbs(path) {
		path = filepath.Join(d.root, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q is outside storage root", key)
	}
	return path, nil
}

func mapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// ctxReader stops a copy once ctx is done, so an abandoned upload is not
// written out in full.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
