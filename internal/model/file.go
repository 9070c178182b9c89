package model

import "time"

// FileRecord is the metadata row written once per successful upload.
// Path and PasswordHash never leave the server; they are excluded from JSON.
type FileRecord struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Path         string    `json:"-"`
	URL          string    `json:"url"`
	PasswordHash *string   `json:"-"`
	UploadDate   time.Time `json:"upload_date"`
}

// RequiresPassword reports whether a password verifier was stored for the file.
func (f *FileRecord) RequiresPassword() bool {
	return f.PasswordHash != nil && *f.PasswordHash != ""
}
