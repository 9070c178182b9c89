package service

import (
	"crypto/rand"
	"io"
	"strings"

	"github.com/google/uuid"
)

// StorageNamer maps an uploaded file to the name it is stored under. The
// result never depends on the original filename, so user input can neither
// pick nor traverse a storage location, and equal filenames never collide.
type StorageNamer func(originalFilename string) (string, error)

// IDGenerator returns a new public file identifier.
type IDGenerator func() (string, error)

// NewStorageNamer draws names from rnd (random UUIDs, hyphens stripped).
// A nil rnd uses crypto/rand.
func NewStorageNamer(rnd io.Reader) StorageNamer {
	if rnd == nil {
		rnd = rand.Reader
	}
	return func(string) (string, error) {
		u, err := uuid.NewRandomFromReader(rnd)
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(u.String(), "-", ""), nil
	}
}

// NewIDGenerator draws UUIDv4 identifiers from rnd. A nil rnd uses crypto/rand.
func NewIDGenerator(rnd io.Reader) IDGenerator {
	if rnd == nil {
		rnd = rand.Reader
	}
	return func() (string, error) {
		u, err := uuid.NewRandomFromReader(rnd)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
}
