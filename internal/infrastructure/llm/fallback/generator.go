// Package fallback chains answer generators so a secondary provider can
// cover primary outages. Embeddings are deliberately not chained; vectors
// from different models cannot share an index.
package fallback

import (
	"context"
	"log/slog"

	"github.com/regulait/parecer/internal/core/ports"
)

type Generator struct {
	primary   ports.AnswerGenerator
	secondary ports.AnswerGenerator
}

func NewGenerator(primary, secondary ports.AnswerGenerator) *Generator {
	return &Generator{primary: primary, secondary: secondary}
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, func(target ports.AnswerGenerator) (string, error) {
		return target.GenerateFromPrompt(ctx, prompt)
	})
}

func (g *Generator) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, prompt, func(target ports.AnswerGenerator) (string, error) {
		return target.GenerateJSONFromPrompt(ctx, prompt)
	})
}

func (g *Generator) generate(ctx context.Context, prompt string, run func(ports.AnswerGenerator) (string, error)) (string, error) {
	answer, err := run(g.primary)
	if err == nil {
		return answer, nil
	}
	// A dead context means the request budget is spent; the secondary
	// provider would only fail the same way.
	if ctx.Err() != nil {
		return "", err
	}
	if g.secondary == nil {
		return "", err
	}

	slog.Warn("primary_generator_failed_falling_back", "error", err)
	answer, fallbackErr := run(g.secondary)
	if fallbackErr != nil {
		slog.Error("fallback_generator_failed", "error", fallbackErr)
		return "", err
	}
	return answer, nil
}
