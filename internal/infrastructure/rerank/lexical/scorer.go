// Package lexical is the offline rerank fallback: question/passage relevance
// approximated by token overlap. It never fails and needs no provider, so
// deployments without a cross-encoder still get a second-stage ordering.
package lexical

import (
	"context"
	"strings"
	"unicode"
)

type Scorer struct{}

func New() *Scorer {
	return &Scorer{}
}

// ScoreCandidates returns, per text, the fraction of distinct question
// tokens that appear in the text.
func (s *Scorer) ScoreCandidates(_ context.Context, question string, texts []string) ([]float64, error) {
	queryTokens := toTokenSet(question)

	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = tokenOverlap(queryTokens, toTokenSet(text))
	}
	return scores, nil
}

func tokenOverlap(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := text[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, token := range fields {
		out[token] = struct{}{}
	}
	return out
}
