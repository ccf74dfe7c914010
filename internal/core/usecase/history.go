package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
)

type AnalysisHistoryUseCase struct {
	repo    ports.AnalysisRepository
	storage ports.ObjectStorage
}

func NewAnalysisHistoryUseCase(repo ports.AnalysisRepository, storage ports.ObjectStorage) *AnalysisHistoryUseCase {
	return &AnalysisHistoryUseCase{repo: repo, storage: storage}
}

func (uc *AnalysisHistoryUseCase) GetDocument(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListAnalyses returns final and discarded analyses of an owned document, newest first.
func (uc *AnalysisHistoryUseCase) ListAnalyses(ctx context.Context, userID, documentID string) ([]domain.Analysis, error) {
	if _, err := uc.GetDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	analyses, err := uc.repo.ListAnalyses(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return analyses, nil
}

// OpenSource streams the archived upload of an owned document. A document
// whose upload was never archived reports ErrDocumentNotFound.
func (uc *AnalysisHistoryUseCase) OpenSource(ctx context.Context, userID, documentID string) (io.ReadCloser, error) {
	doc, err := uc.GetDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	if uc.storage == nil || doc.SourceKey == "" {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open source", errors.New("source not archived"))
	}
	rc, err := uc.storage.Open(ctx, doc.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	return rc, nil
}
