package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal error chains out of responses.
func errorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return domain.MsgDocumentNotFound
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid request"
	case domain.IsKind(err, domain.ErrTemporary):
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

func statusForOutcome(outcome domain.Outcome) int {
	switch outcome.Status {
	case domain.OutcomeSuccess:
		return http.StatusOK
	case domain.OutcomeWarning:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
