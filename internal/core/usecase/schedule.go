package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
)

// ReanalysisScheduleUseCase hands reanalysis of stored documents to the worker.
type ReanalysisScheduleUseCase struct {
	repo  ports.AnalysisRepository
	queue ports.ReanalysisQueue
}

func NewReanalysisScheduleUseCase(
	repo ports.AnalysisRepository,
	queue ports.ReanalysisQueue,
) *ReanalysisScheduleUseCase {
	return &ReanalysisScheduleUseCase{
		repo:  repo,
		queue: queue,
	}
}

func (uc *ReanalysisScheduleUseCase) ScheduleReanalysis(ctx context.Context, userID, documentID, userPrompt string) error {
	if _, err := uc.repo.GetDocument(ctx, userID, documentID); err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	req := domain.ReanalysisRequest{
		DocumentID:  documentID,
		OwnerID:     userID,
		UserPrompt:  userPrompt,
		RequestedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishReanalysisRequested(ctx, req); err != nil {
		return fmt.Errorf("publish reanalysis request: %w", err)
	}
	return nil
}
