package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

// AnalysisRepository persists documents and analyses.
type AnalysisRepository interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
	// FinalizeAnalysis discards the current final analysis of the document and
	// inserts the given one as final, atomically.
	FinalizeAnalysis(ctx context.Context, analysis *domain.Analysis) error
	ListAnalyses(ctx context.Context, documentID string) ([]domain.Analysis, error)
}

// ObjectStorage stores source documents. Open reports a missing key as
// domain.ErrDocumentNotFound; Delete of a missing key is not an error.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor turns raw PDF bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (domain.Extraction, error)
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  *float64
}

// CompletionProvider produces a raw text completion for a prompt pair.
type CompletionProvider interface {
	Generate(ctx context.Context, req CompletionRequest) (string, error)
}

// EventPublisher announces pipeline results to other services.
type EventPublisher interface {
	PublishAnalysisFinalized(ctx context.Context, event domain.AnalysisFinalizedEvent) error
}

// ReanalysisQueue carries reanalysis requests from the API to workers.
type ReanalysisQueue interface {
	PublishReanalysisRequested(ctx context.Context, req domain.ReanalysisRequest) error
	SubscribeReanalysisRequested(ctx context.Context, handler func(context.Context, domain.ReanalysisRequest) error) error
}
