package httpadapter

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

const testSecret = "test-secret"

type analyzerFake struct {
	mu      sync.Mutex
	outcome domain.Outcome

	analyzeCalls   int
	reanalyzeCalls int
	lastUserID     string
	lastDocument   string
	lastPrompt     string
	lastFile       *domain.UploadedFile
}

func (f *analyzerFake) Analyze(_ context.Context, userID string, file *domain.UploadedFile, userPrompt string) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeCalls++
	f.lastUserID = userID
	f.lastFile = file
	f.lastPrompt = userPrompt
	if file == nil {
		return domain.Warning(domain.MsgNoFile)
	}
	return f.outcome
}

func (f *analyzerFake) Reanalyze(_ context.Context, userID, documentID, userPrompt string) domain.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reanalyzeCalls++
	f.lastUserID = userID
	f.lastDocument = documentID
	f.lastPrompt = userPrompt
	return f.outcome
}

type readerFake struct {
	docs     map[string]*domain.Document
	analyses []domain.Analysis
	sources  map[string]string
}

func (f readerFake) GetDocument(_ context.Context, userID, documentID string) (*domain.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok || doc.OwnerID != userID {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("no rows"))
	}
	return doc, nil
}

func (f readerFake) ListAnalyses(ctx context.Context, userID, documentID string) ([]domain.Analysis, error) {
	if _, err := f.GetDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	return f.analyses, nil
}

func (f readerFake) OpenSource(ctx context.Context, userID, documentID string) (io.ReadCloser, error) {
	if _, err := f.GetDocument(ctx, userID, documentID); err != nil {
		return nil, err
	}
	body, ok := f.sources[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "open source", errors.New("source not archived"))
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type schedulerFake struct {
	err      error
	calls    int
	lastDoc  string
	lastUser string
}

func (f *schedulerFake) ScheduleReanalysis(_ context.Context, userID, documentID, _ string) error {
	f.calls++
	f.lastDoc = documentID
	f.lastUser = userID
	return f.err
}

type limiterFake struct {
	allow bool
	keys  []string
}

func (f *limiterFake) Allow(_ context.Context, key string) bool {
	f.keys = append(f.keys, key)
	return f.allow
}

type observerFake struct {
	outcomes    []string
	rateLimited int
}

func (f *observerFake) RecordOutcome(_, entry, status string) {
	f.outcomes = append(f.outcomes, entry+":"+status)
}

func (f *observerFake) RecordRateLimited(string, string) {
	f.rateLimited++
}

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	return mintToken(t, testSecret, jwt.MapClaims{"userId": userID})
}
