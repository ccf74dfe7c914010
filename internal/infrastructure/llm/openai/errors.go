package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

// APIError is a non-2xx answer from /chat/completions. Type and Code carry the
// "error" object of the OpenAI error envelope when the server sent one.
type APIError struct {
	Operation  string
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: status %d", e.Operation, e.StatusCode)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// quotaExhausted is a 429 that no amount of waiting fixes.
func (e *APIError) quotaExhausted() bool {
	return e.StatusCode == http.StatusTooManyRequests && (e.Code == "insufficient_quota" || e.Type == "insufficient_quota")
}

// classifyCompletionError decides retry and breaker accounting for one
// completion attempt. Oversized prompts and other 4xx answers are the
// caller's problem and never count against the provider.
func classifyCompletionError(err error) resilience.ErrorClassification {
	var apiErr *APIError
	var netErr net.Error
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case errors.Is(err, context.DeadlineExceeded):
		// A slow provider counts against the breaker but the pipeline
		// deadline is already spent.
		return resilience.ErrorClassification{RecordFailure: true}
	case errors.Is(err, errEmptyResponse):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.As(err, &apiErr):
		switch {
		case apiErr.quotaExhausted():
			return resilience.ErrorClassification{RecordFailure: true}
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return resilience.ErrorClassification{RecordFailure: true}
		case retryableStatus(apiErr.StatusCode):
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	case errors.As(err, &netErr):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// providerFailure wraps a failed Generate as ErrProviderFailed, adding
// ErrTemporary when the provider is expected to recover on its own.
func providerFailure(err error) error {
	const op = "openai generate"
	if resilience.IsCircuitOpen(err) || classifyCompletionError(err).Retryable {
		err = domain.WrapError(domain.ErrTemporary, op, err)
	}
	return domain.WrapError(domain.ErrProviderFailed, op, err)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
