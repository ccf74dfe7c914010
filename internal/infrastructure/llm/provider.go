// Package llm selects and decorates the completion provider used by the pipeline.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/llm/mock"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/llm/openai"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type Settings struct {
	Provider    string
	ForceError  bool
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	Executor    *resilience.Executor
}

// NewProvider builds the provider named in settings. It is called once at
// startup; the returned name is used for metrics labels.
func NewProvider(settings Settings) (ports.CompletionProvider, string, error) {
	name := strings.ToLower(strings.TrimSpace(settings.Provider))
	if name == "" {
		name = ProviderOpenAI
	}

	var provider ports.CompletionProvider
	switch name {
	case ProviderMock:
		provider = mock.NewProvider()
	case ProviderOpenAI:
		if settings.ForceError {
			break
		}
		if strings.TrimSpace(settings.APIKey) == "" {
			return nil, "", errors.New("openai provider requires OPENAI_API_KEY")
		}
		provider = openai.New(settings.BaseURL, settings.APIKey, openai.Options{
			Model:              settings.Model,
			Temperature:        settings.Temperature,
			ResilienceExecutor: settings.Executor,
		})
	default:
		return nil, "", fmt.Errorf("unsupported llm provider %q", settings.Provider)
	}

	if settings.ForceError {
		return mock.NewFailingProvider(), name + "+forced_error", nil
	}
	return provider, name, nil
}

type CompletionObserver interface {
	ObserveCompletion(provider string, duration time.Duration, err error)
}

type instrumentedProvider struct {
	name     string
	next     ports.CompletionProvider
	observer CompletionObserver
}

// Instrument reports latency and result of every call to observer.
func Instrument(name string, next ports.CompletionProvider, observer CompletionObserver) ports.CompletionProvider {
	if observer == nil {
		return next
	}
	return &instrumentedProvider{name: name, next: next, observer: observer}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req ports.CompletionRequest) (string, error) {
	start := time.Now()
	out, err := p.next.Generate(ctx, req)
	p.observer.ObserveCompletion(p.name, time.Since(start), err)
	return out, err
}
