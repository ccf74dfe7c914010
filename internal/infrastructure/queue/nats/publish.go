package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

// publishPath names one of the two subjects this service publishes to. It
// keys the breaker so a failing events subject never blocks reanalysis.
type publishPath string

const (
	pathReanalysis publishPath = "reanalysis"
	pathEvents     publishPath = "events"
)

func (p publishPath) operation() string {
	return "nats.publish." + string(p)
}

// classifyPublishError decides retry and breaker accounting for one publish.
// A closed or draining connection never comes back, so it is not retried.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrConnectionDraining):
		return resilience.ErrorClassification{RecordFailure: true}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishFailure maps a publish error to a domain kind. Broker outages,
// including an open breaker, become ErrTemporary so the HTTP layer answers
// 503 for queued reanalysis; rejected payloads become ErrInvalidInput.
func publishFailure(path publishPath, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	op := "publish " + string(path)
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionDraining),
		classifyPublishError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, op, err)
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return domain.WrapError(domain.ErrInvalidInput, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
