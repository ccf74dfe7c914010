package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract of the analysis pipeline.
// It never returns an error: every failure is folded into the Outcome.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, userID string, file *domain.UploadedFile, userPrompt string) domain.Outcome
	Reanalyze(ctx context.Context, userID, documentID, userPrompt string) domain.Outcome
}

// AnalysisReader is the inbound read model for documents and their analysis history.
type AnalysisReader interface {
	GetDocument(ctx context.Context, userID, documentID string) (*domain.Document, error)
	ListAnalyses(ctx context.Context, userID, documentID string) ([]domain.Analysis, error)
	OpenSource(ctx context.Context, userID, documentID string) (io.ReadCloser, error)
}

// ReanalysisScheduler queues reanalysis for asynchronous processing.
type ReanalysisScheduler interface {
	ScheduleReanalysis(ctx context.Context, userID, documentID, userPrompt string) error
}
