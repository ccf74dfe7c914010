package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/core/usecase"
)

const (
	serviceName = "api"

	// maxUploadBody leaves room for multipart framing and the prompt field.
	maxUploadBody   = usecase.MaxArtifactSize + 1<<20
	multipartMemory = 16 << 20
	maxJSONBody     = 64 << 10
)

type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type Observer interface {
	RecordOutcome(service, entry, status string)
	RecordRateLimited(service, path string)
}

type Options struct {
	JWTSecret      string
	Limiter        RateLimiter
	Observer       Observer
	MetricsHandler http.Handler
}

type Router struct {
	analyzer  ports.DocumentAnalyzer
	reader    ports.AnalysisReader
	scheduler ports.ReanalysisScheduler

	jwtSecret      []byte
	limiter        RateLimiter
	observer       Observer
	metricsHandler http.Handler
}

func NewRouter(
	analyzer ports.DocumentAnalyzer,
	reader ports.AnalysisReader,
	scheduler ports.ReanalysisScheduler,
	opts Options,
) *Router {
	return &Router{
		analyzer:       analyzer,
		reader:         reader,
		scheduler:      scheduler,
		jwtSecret:      []byte(opts.JWTSecret),
		limiter:        opts.Limiter,
		observer:       opts.Observer,
		metricsHandler: opts.MetricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metricsHandler != nil {
		mux.Handle("GET /metrics", rt.metricsHandler)
	}

	mux.HandleFunc("POST /v1/analyses", rt.requireUser(rt.rateLimited(rt.analyzeUpload)))
	mux.HandleFunc("POST /v1/documents/{id}/analyses", rt.requireUser(rt.rateLimited(rt.reanalyze)))
	mux.HandleFunc("GET /v1/documents/{id}/analyses", rt.requireUser(rt.listAnalyses))
	mux.HandleFunc("GET /v1/documents/{id}/source", rt.requireUser(rt.downloadSource))
	mux.HandleFunc("GET /v1/documents/{id}", rt.requireUser(rt.getDocument))

	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) analyzeUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadBody {
		rt.respondOutcome(w, "upload", http.StatusRequestEntityTooLarge, domain.Warning(domain.MsgPDFTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	file, userPrompt, err := readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rt.respondOutcome(w, "upload", http.StatusRequestEntityTooLarge, domain.Warning(domain.MsgPDFTooLarge))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	outcome := rt.analyzer.Analyze(r.Context(), userIDFromContext(r.Context()), file, userPrompt)
	rt.respondOutcome(w, "upload", statusForOutcome(outcome), outcome)
}

// readUpload returns a nil file when the form carries no "file" part so the
// pipeline reports it as a validation outcome.
func readUpload(r *http.Request) (*domain.UploadedFile, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()
	userPrompt := r.FormValue("prompt")

	part, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, userPrompt, nil
		}
		return nil, "", err
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, "", err
	}
	return &domain.UploadedFile{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     int64(len(data)),
		Data:     data,
	}, userPrompt, nil
}

func (rt *Router) reanalyze(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
		Async  bool   `json:"async"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	userID := userIDFromContext(r.Context())
	if req.Async {
		if rt.scheduler == nil {
			writeError(w, http.StatusServiceUnavailable, "async reanalysis is not available")
			return
		}
		if err := rt.scheduler.ScheduleReanalysis(r.Context(), userID, documentID, req.Prompt); err != nil {
			writeError(w, mapErrorToHTTPStatus(err), errorMessage(err))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":      "queued",
			"document_id": documentID,
		})
		return
	}

	outcome := rt.analyzer.Reanalyze(r.Context(), userID, documentID, req.Prompt)
	rt.respondOutcome(w, "reanalyze", statusForOutcome(outcome), outcome)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.reader.GetDocument(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), errorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) downloadSource(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	rc, err := rt.reader.OpenSource(r.Context(), userIDFromContext(r.Context()), documentID)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), errorMessage(err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", usecase.PDFMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", documentID+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "source_stream_failed", "document_id", documentID, "error", err)
	}
}

func (rt *Router) listAnalyses(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	analyses, err := rt.reader.ListAnalyses(r.Context(), userIDFromContext(r.Context()), documentID)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), errorMessage(err))
		return
	}
	if analyses == nil {
		analyses = []domain.Analysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": documentID,
		"analyses":    analyses,
	})
}

func (rt *Router) respondOutcome(w http.ResponseWriter, entry string, status int, outcome domain.Outcome) {
	if rt.observer != nil {
		rt.observer.RecordOutcome(serviceName, entry, string(outcome.Status))
	}
	writeJSON(w, status, outcome)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
