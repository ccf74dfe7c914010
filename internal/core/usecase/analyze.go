package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/core/prompt"
	"github.com/kirillkom/document-analyzer/internal/core/schema"
)

const defaultCompletionTimeout = 60 * time.Second

// AnalyzeDocumentUseCase runs the document analysis pipeline. Every failure
// is converted to an Outcome; root causes only reach the log.
type AnalyzeDocumentUseCase struct {
	repo      ports.AnalysisRepository
	extractor ports.TextExtractor
	provider  ports.CompletionProvider
	storage   ports.ObjectStorage
	events    ports.EventPublisher
	settings  domain.AnalysisSettings

	now   func() time.Time
	newID func() string
}

// NewAnalyzeDocumentUseCase wires the pipeline. storage and events may be nil.
func NewAnalyzeDocumentUseCase(
	repo ports.AnalysisRepository,
	extractor ports.TextExtractor,
	provider ports.CompletionProvider,
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	settings domain.AnalysisSettings,
) *AnalyzeDocumentUseCase {
	if strings.TrimSpace(settings.PromptVersion) == "" {
		settings.PromptVersion = prompt.ActiveVersion
	}
	if settings.CompletionTimeout <= 0 {
		settings.CompletionTimeout = defaultCompletionTimeout
	}

	return &AnalyzeDocumentUseCase{
		repo:      repo,
		extractor: extractor,
		provider:  provider,
		storage:   storage,
		events:    events,
		settings:  settings,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(
	ctx context.Context,
	userID string,
	file *domain.UploadedFile,
	userPrompt string,
) domain.Outcome {
	var artifactErr *ArtifactError
	if err := ValidateArtifact(file); errors.As(err, &artifactErr) {
		return uc.warn(ctx, "validate_artifact", artifactErr.Message)
	}

	extraction, err := uc.extractor.Extract(ctx, file.Data)
	if err != nil {
		return uc.fail(ctx, "extract_text", domain.MsgExtractionFailed, err)
	}

	cleaned := CleanText(extraction.Text)
	if cleaned == "" {
		return uc.warn(ctx, "clean_text", domain.MsgNoReadableText)
	}

	doc := &domain.Document{
		ID:        uc.newID(),
		OwnerID:   userID,
		Content:   extraction.Text,
		PageCount: extraction.PageCount,
		CreatedAt: uc.now(),
	}
	doc.SourceKey = uc.archiveSource(ctx, doc.ID, file.Data)

	if err := uc.repo.CreateDocument(ctx, doc); err != nil {
		uc.discardSource(ctx, doc.SourceKey)
		return uc.fail(ctx, "store_document", domain.MsgDocumentStoreFailed, err)
	}

	return uc.analyzeDocument(ctx, doc, cleaned, userPrompt)
}

// Reanalyze runs the model over the stored text of a document owned by userID.
func (uc *AnalyzeDocumentUseCase) Reanalyze(ctx context.Context, userID, documentID, userPrompt string) domain.Outcome {
	doc, err := uc.repo.GetDocument(ctx, userID, documentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return uc.warn(ctx, "load_document", domain.MsgDocumentNotFound)
		}
		return uc.fail(ctx, "load_document", domain.MsgDocumentLoadFailed, err)
	}

	cleaned := CleanText(doc.Content)
	if cleaned == "" {
		return uc.warn(ctx, "clean_text", domain.MsgNoReadableText)
	}
	return uc.analyzeDocument(ctx, doc, cleaned, userPrompt)
}

func (uc *AnalyzeDocumentUseCase) analyzeDocument(
	ctx context.Context,
	doc *domain.Document,
	cleaned string,
	userPrompt string,
) domain.Outcome {
	built, err := prompt.Build(prompt.Input{
		DocumentText:    cleaned,
		UserInstruction: userPrompt,
		Version:         uc.settings.PromptVersion,
	})
	if err != nil {
		return uc.fail(ctx, "build_prompt", domain.MsgPromptVersion, err)
	}

	raw, err := uc.generate(ctx, built)
	if err != nil {
		return uc.fail(ctx, "generate", domain.MsgProviderFailed, err)
	}

	result, err := schema.ValidateResponse(raw)
	if err != nil {
		if domain.IsKind(err, domain.ErrMalformedResponse) {
			return uc.fail(ctx, "validate_response", domain.MsgMalformedResponse, err)
		}
		return uc.fail(ctx, "validate_response", domain.MsgInvalidShape, err)
	}

	analysis := &domain.Analysis{
		ID:            uc.newID(),
		DocumentID:    doc.ID,
		UserPrompt:    optionalPrompt(userPrompt),
		Status:        domain.AnalysisFinal,
		PromptVersion: built.Version,
		Result:        result,
		CreatedAt:     uc.now(),
	}
	if err := uc.repo.FinalizeAnalysis(ctx, analysis); err != nil {
		return uc.fail(ctx, "store_analysis", domain.MsgAnalysisStoreFailed, err)
	}

	slog.InfoContext(ctx, "analysis_finalized",
		"document_id", doc.ID,
		"analysis_id", analysis.ID,
		"prompt_version", analysis.PromptVersion,
	)
	uc.publishFinalized(ctx, doc, analysis)

	return domain.Success(result)
}

func (uc *AnalyzeDocumentUseCase) generate(ctx context.Context, built prompt.Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.settings.CompletionTimeout)
	defer cancel()

	raw, err := uc.provider.Generate(callCtx, ports.CompletionRequest{
		SystemPrompt: built.System,
		UserPrompt:   built.User,
		Model:        uc.settings.Model,
		Temperature:  uc.settings.Temperature,
	})
	if err != nil {
		if domain.IsKind(err, domain.ErrProviderFailed) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrProviderFailed, "generate completion", err)
	}
	return raw, nil
}

func (uc *AnalyzeDocumentUseCase) archiveSource(ctx context.Context, documentID string, data []byte) string {
	if uc.storage == nil {
		return ""
	}
	key := fmt.Sprintf("documents/%s.pdf", documentID)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(data)); err != nil {
		slog.WarnContext(ctx, "analysis_archive_failed", "document_id", documentID, "error", err)
		return ""
	}
	return key
}

// discardSource removes an archived upload whose document row was never written.
func (uc *AnalyzeDocumentUseCase) discardSource(ctx context.Context, key string) {
	if uc.storage == nil || key == "" {
		return
	}
	if err := uc.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "analysis_archive_cleanup_failed", "key", key, "error", err)
	}
}

func (uc *AnalyzeDocumentUseCase) publishFinalized(ctx context.Context, doc *domain.Document, analysis *domain.Analysis) {
	if uc.events == nil {
		return
	}
	event := domain.AnalysisFinalizedEvent{
		AnalysisID:    analysis.ID,
		DocumentID:    doc.ID,
		OwnerID:       doc.OwnerID,
		PromptVersion: analysis.PromptVersion,
		FinalizedAt:   analysis.CreatedAt,
	}
	if err := uc.events.PublishAnalysisFinalized(ctx, event); err != nil {
		slog.WarnContext(ctx, "analysis_event_publish_failed", "analysis_id", analysis.ID, "error", err)
	}
}

func (uc *AnalyzeDocumentUseCase) warn(ctx context.Context, step, message string) domain.Outcome {
	slog.InfoContext(ctx, "analysis_warning", "step", step, "message", message)
	return domain.Warning(message)
}

func (uc *AnalyzeDocumentUseCase) fail(ctx context.Context, step, message string, cause error) domain.Outcome {
	slog.ErrorContext(ctx, "analysis_failed", "step", step, "message", message, "error", cause)
	return domain.Failure(message)
}

func optionalPrompt(userPrompt string) *string {
	if strings.TrimSpace(userPrompt) == "" {
		return nil
	}
	p := userPrompt
	return &p
}
