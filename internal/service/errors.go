package service

import "errors"

var (
	// ErrNoFile means the request carried no payload or an empty one.
	ErrNoFile = errors.New("no file uploaded")
	// ErrStorageWrite means the payload could not be persisted.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrMetadata means the metadata store failed.
	ErrMetadata = errors.New("metadata store failed")
	// ErrNotFound means no file record exists for the id.
	ErrNotFound = errors.New("file not found")
	// ErrPasswordRequired means the file is protected and no password was given.
	ErrPasswordRequired = errors.New("password required")
	// ErrInvalidPassword means the given password does not match.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrPasswordNotRequired means a password was submitted for a public file.
	ErrPasswordNotRequired = errors.New("file does not require a password")
	// ErrFileMissing means the record exists but its payload is gone from storage.
	ErrFileMissing = errors.New("file not found on server")
)
