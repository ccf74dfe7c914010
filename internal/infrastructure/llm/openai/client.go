// Package openai calls OpenAI-compatible /chat/completions endpoints.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/document-analyzer/internal/core/ports"
	"github.com/kirillkom/document-analyzer/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
)

var errEmptyResponse = errors.New("empty response from completion api")

type Options struct {
	Model              string
	Temperature        *float64
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	httpClient  *http.Client
	executor    *resilience.Executor
}

// New builds a client. baseURL should include the /v1 prefix.
func New(baseURL, apiKey string, options Options) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(options.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := DefaultTemperature
	if options.Temperature != nil {
		temperature = *options.Temperature
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		temperature: temperature,
		httpClient:  httpClient,
		executor:    options.ResilienceExecutor,
	}
}

func (c *Client) Generate(ctx context.Context, req ports.CompletionRequest) (string, error) {
	body := chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		body.Model = model
	}
	if req.Temperature != nil {
		body.Temperature = *req.Temperature
	}

	var content string
	call := func(callCtx context.Context) error {
		var response chatResponse
		if err := c.postJSON(callCtx, "/chat/completions", body, &response, "chat completion"); err != nil {
			return err
		}
		if len(response.Choices) == 0 {
			return errEmptyResponse
		}
		text := strings.TrimSpace(response.Choices[0].Message.Content)
		if text == "" {
			return errEmptyResponse
		}
		content = text
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.openai.chat_completion", call, classifyCompletionError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", providerFailure(err)
	}
	return content, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
