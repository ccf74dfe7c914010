package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
)

const validCompletion = `{"summary":"A short report.","keyPoints":["revenue grew"],"insights":["costs are a risk"]}`

type memoryRepoFake struct {
	mu        sync.Mutex
	documents map[string]domain.Document
	analyses  []domain.Analysis

	createErr   error
	getErr      error
	finalizeErr error
}

func newMemoryRepoFake() *memoryRepoFake {
	return &memoryRepoFake{documents: map[string]domain.Document{}}
}

func (f *memoryRepoFake) CreateDocument(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.documents[doc.ID] = *doc
	return nil
}

func (f *memoryRepoFake) GetDocument(_ context.Context, ownerID, documentID string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	doc, ok := f.documents[documentID]
	if !ok || doc.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", documentID))
	}
	return &doc, nil
}

func (f *memoryRepoFake) FinalizeAnalysis(_ context.Context, analysis *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	for i := range f.analyses {
		if f.analyses[i].DocumentID == analysis.DocumentID && f.analyses[i].Status == domain.AnalysisFinal {
			f.analyses[i].Status = domain.AnalysisDiscarded
		}
	}
	f.analyses = append(f.analyses, *analysis)
	return nil
}

func (f *memoryRepoFake) ListAnalyses(_ context.Context, documentID string) ([]domain.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Analysis, 0)
	for i := len(f.analyses) - 1; i >= 0; i-- {
		if f.analyses[i].DocumentID == documentID {
			out = append(out, f.analyses[i])
		}
	}
	return out, nil
}

func (f *memoryRepoFake) countByStatus(documentID string, status domain.AnalysisStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.analyses {
		if a.DocumentID == documentID && a.Status == status {
			n++
		}
	}
	return n
}

func (f *memoryRepoFake) onlyDocument() (domain.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.documents) != 1 {
		return domain.Document{}, false
	}
	for _, doc := range f.documents {
		return doc, true
	}
	return domain.Document{}, false
}

type extractorFake struct {
	text  string
	pages int
	err   error
	calls int
}

func (f *extractorFake) Extract(context.Context, []byte) (domain.Extraction, error) {
	f.calls++
	if f.err != nil {
		return domain.Extraction{}, f.err
	}
	return domain.Extraction{Text: f.text, PageCount: f.pages}, nil
}

type providerFake struct {
	mu       sync.Mutex
	response string
	err      error
	block    bool
	requests []ports.CompletionRequest
}

func (f *providerFake) Generate(ctx context.Context, req ports.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *providerFake) lastRequest() ports.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ports.CompletionRequest{}
	}
	return f.requests[len(f.requests)-1]
}

type storageFake struct {
	saved   map[string][]byte
	deleted []string
	err     error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open source", fmt.Errorf("key=%s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.saved, key)
	return nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.AnalysisFinalizedEvent
	err    error
}

func (f *eventsFake) PublishAnalysisFinalized(_ context.Context, event domain.AnalysisFinalizedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type reanalysisQueueFake struct {
	published []domain.ReanalysisRequest
	err       error
}

func (f *reanalysisQueueFake) PublishReanalysisRequested(_ context.Context, req domain.ReanalysisRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *reanalysisQueueFake) SubscribeReanalysisRequested(context.Context, func(context.Context, domain.ReanalysisRequest) error) error {
	return errors.New("not implemented")
}

func pdfUpload(data string) *domain.UploadedFile {
	return &domain.UploadedFile{
		Filename: "report.pdf",
		MimeType: PDFMimeType,
		Size:     int64(len(data)),
		Data:     []byte(data),
	}
}
