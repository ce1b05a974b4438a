// Package openai adapts the OpenAI chat completions API as a secondary
// answer generator. It is wired only when an API key is configured and never
// serves embeddings: mixing embedding models would desync the vector index.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/infrastructure/resilience"
)

type Generator struct {
	client   *openai.Client
	model    string
	executor *resilience.Executor
}

type Options struct {
	// BaseURL overrides the API endpoint, mostly for tests and proxies.
	BaseURL            string
	ResilienceExecutor *resilience.Executor
}

func New(apiKey, model string) *Generator {
	return NewWithOptions(apiKey, model, Options{})
}

func NewWithOptions(apiKey, model string, options Options) *Generator {
	config := openai.DefaultConfig(apiKey)
	if options.BaseURL != "" {
		config.BaseURL = strings.TrimRight(options.BaseURL, "/")
	}
	return &Generator{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		executor: options.ResilienceExecutor,
	}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, nil)
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (g *Generator) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	request := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: format,
	}

	var content string
	fn := func(ctx context.Context) error {
		response, err := g.client.CreateChatCompletion(ctx, request)
		if err != nil {
			return fmt.Errorf("openai chat completion: %w", err)
		}
		if len(response.Choices) == 0 {
			return fmt.Errorf("openai chat completion: empty choices")
		}
		content = strings.TrimSpace(response.Choices[0].Message.Content)
		return nil
	}

	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, "openai.generate", fn, classifyOpenAIError)
	} else {
		err = fn(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("generate", err)
	}
	return content, nil
}

func classifyOpenAIError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		default:
			return resilience.ErrorClassification{
				Retryable:     false,
				RecordFailure: false,
			}
		}
	}

	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if !domain.IsKind(err, domain.ErrProviderTimeout) {
			return domain.WrapError(domain.ErrProviderTimeout, "openai "+operation, err)
		}
		return err
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	class := classifyOpenAIError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "openai "+operation, err)
	}
	return err
}
