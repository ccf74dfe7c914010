package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

func TestGenerateSendsPromptPairWithDefaults(t *testing.T) {
	var captured chatRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"summary\":\"s\"} "}}]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/v1/", "sk-test", Options{})
	out, err := client.Generate(context.Background(), ports.CompletionRequest{SystemPrompt: "sys", UserPrompt: "usr"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != `{"summary":"s"}` {
		t.Fatalf("unexpected output %q", out)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if captured.Model != DefaultModel || captured.Temperature != DefaultTemperature {
		t.Fatalf("expected defaults, got model=%s temperature=%v", captured.Model, captured.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "sys" || captured.Messages[1].Content != "usr" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
}

func TestGenerateRequestOverridesModelAndTemperature(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	zero := 0.0
	client := New(server.URL, "", Options{Model: "configured"})
	if _, err := client.Generate(context.Background(), ports.CompletionRequest{Model: "per-call", Temperature: &zero}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if captured.Model != "per-call" || captured.Temperature != 0 {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestGenerateEmptyResponseIsProviderFailure(t *testing.T) {
	for _, body := range []string{`{"choices":[]}`, `{"choices":[{"message":{"content":"   "}}]}`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))

		_, err := New(server.URL, "", Options{}).Generate(context.Background(), ports.CompletionRequest{})
		server.Close()
		if !domain.IsKind(err, domain.ErrProviderFailed) {
			t.Fatalf("expected ErrProviderFailed for %s, got %v", body, err)
		}
		if !errors.Is(err, errEmptyResponse) {
			t.Fatalf("expected empty response cause, got %v", err)
		}
	}
}

func TestGenerateIncludesAPIErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "bad", Options{}).Generate(context.Background(), ports.CompletionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Fatalf("expected api message in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("401 must not be temporary")
	}
}

func TestGenerateServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "", Options{}).Generate(context.Background(), ports.CompletionRequest{})
	if !domain.IsKind(err, domain.ErrProviderFailed) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected provider failure with temporary kind, got %v", err)
	}
}

func TestGenerateDoesNotRetryWithSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{RetryMaxAttempts: 1, BreakerEnabled: true})
	_, err := New(server.URL, "", Options{ResilienceExecutor: executor}).Generate(context.Background(), ports.CompletionRequest{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", got)
	}
}

func TestGenerateHonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := New(server.URL, "", Options{}).Generate(ctx, ports.CompletionRequest{})
	if !domain.IsKind(err, domain.ErrProviderFailed) {
		t.Fatalf("expected ErrProviderFailed, got %v", err)
	}
}
