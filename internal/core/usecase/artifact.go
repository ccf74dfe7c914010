package usecase

import (
	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

const (
	PDFMimeType = "application/pdf"

	// MaxArtifactSize is the inclusive upper bound for uploaded PDFs.
	MaxArtifactSize int64 = 10 * 1024 * 1024
)

// ArtifactError is a user-correctable rejection of an uploaded file.
type ArtifactError struct {
	Message string
}

func (e *ArtifactError) Error() string {
	return e.Message
}

func (e *ArtifactError) Unwrap() error {
	return domain.ErrInvalidInput
}

// ValidateArtifact checks presence, media type and size. The first failing
// check wins.
func ValidateArtifact(file *domain.UploadedFile) error {
	switch {
	case file == nil:
		return &ArtifactError{Message: domain.MsgNoFile}
	case file.MimeType != PDFMimeType:
		return &ArtifactError{Message: domain.MsgNotPDF}
	case file.Size <= 0:
		return &ArtifactError{Message: domain.MsgEmptyPDF}
	case file.Size > MaxArtifactSize:
		return &ArtifactError{Message: domain.MsgPDFTooLarge}
	}
	return nil
}
