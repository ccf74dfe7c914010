// Package mock provides offline completion providers for development and tests.
package mock

import (
	"context"
	"errors"

	"github.com/kirillkom/document-analyzer/internal/core/domain"
	"github.com/kirillkom/document-analyzer/internal/core/ports"
)

// Response is returned verbatim by Provider on every call.
const Response = `{"summary":"[MOCKED LLM RESPONSE]\n\nSummary:\n- This is a mocked AI response.\n- Used for local development and testing.\n- The LLM provider can be swapped without affecting the rest of the system.","keyPoints":[],"insights":[]}`

// Provider never touches the network.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Generate(ctx context.Context, _ ports.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.WrapError(domain.ErrProviderFailed, "mock generate", err)
	}
	return Response, nil
}

var ErrSimulatedFailure = errors.New("simulated completion failure")

// FailingProvider makes every call fail. Bootstrap installs it in place of
// the configured provider when LLM_FORCE_ERROR is set.
type FailingProvider struct{}

func NewFailingProvider() *FailingProvider {
	return &FailingProvider{}
}

func (p *FailingProvider) Generate(context.Context, ports.CompletionRequest) (string, error) {
	return "", domain.WrapError(domain.ErrProviderFailed, "forced failure", ErrSimulatedFailure)
}
