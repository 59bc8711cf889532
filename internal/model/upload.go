package model

import "time"

// FileUpload records an image stored on disk.
type FileUpload struct {
	ID           uint64     `json:"id"`
	OriginalName string     `json:"original_name"`
	StoredName   string     `json:"stored_name"`
	MimeType     string     `json:"mime_type"`
	SizeBytes    int64      `json:"size_bytes"`
	URL          string     `json:"url"`
	UploadedBy   *uint64    `json:"uploaded_by"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"-"`
}
