// Package ollama adapts a local Ollama server as the default embedding,
// generation and classification provider.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/infrastructure/resilience"
	"github.com/regulait/parecer/internal/prompt"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithOptions(baseURL, genModel, embedModel, Options{})
}

func NewWithOptions(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	fn := func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, fn, classifyOllamaError)
	} else {
		err = fn(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

// Embedder computes chunk and query vectors with the configured embed model.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Generator produces answer text from fully built prompts.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Classifier types a norm document from its filename and opening excerpt.
type Classifier struct {
	generator *Generator
	prompts   *prompt.Registry
}

func NewClassifier(client *Client, prompts *prompt.Registry) *Classifier {
	return &Classifier{generator: NewGenerator(client), prompts: prompts}
}

func (c *Classifier) Classify(ctx context.Context, filename, excerpt string) (domain.Classification, error) {
	raw, err := c.generator.GenerateJSONFromPrompt(ctx, c.prompts.ClassifyPrompt(filename, excerpt))
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}
	return normalizeClassification(result), nil
}

// normalizeClassification repairs loosely structured LLM output: canonical
// doc type casing, precedence from the norm hierarchy and confidence clamped
// to [0,1].
func normalizeClassification(cls domain.Classification) domain.Classification {
	cls.DocType = canonicalDocType(cls.DocType)
	if cls.Precedence <= 0 {
		cls.Precedence = domain.PrecedenceForDocType(cls.DocType)
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	if cls.Tags == nil {
		cls.Tags = []string{}
	}
	return cls
}

func canonicalDocType(raw string) string {
	known := []string{
		domain.DocTypeLei,
		domain.DocTypeDecreto,
		domain.DocTypeResolucao,
		domain.DocTypePortaria,
		domain.DocTypeDeliberacao,
		domain.DocTypeOther,
	}
	trimmed := strings.TrimSpace(raw)
	for _, k := range known {
		if strings.EqualFold(trimmed, k) {
			return k
		}
	}
	if trimmed == "" {
		return domain.DocTypeOther
	}
	return trimmed
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
