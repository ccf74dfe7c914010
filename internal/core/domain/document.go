package domain

import "time"

// Document is the immutable text snapshot of one uploaded PDF.
type Document struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Content   string    `json:"content"`
	SourceKey string    `json:"source_key,omitempty"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadedFile is the artifact handed over by the transport layer.
type UploadedFile struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// Extraction is the raw output of a text extractor.
type Extraction struct {
	Text      string
	PageCount int
}
