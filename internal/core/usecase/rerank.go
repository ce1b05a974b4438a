package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
)

// rerankEvidence reorders the top-n prefix of fused evidence by cross-encoder
// scores, leaving everything past the prefix in fusion order. Reranking is an
// enhancement, never a hard dependency: any provider failure returns the input
// unchanged and reports ok=false so the caller can emit a warning.
func rerankEvidence(
	ctx context.Context,
	scorer ports.RerankScorer,
	question string,
	evidence []domain.Evidence,
	topN int,
) ([]domain.Evidence, bool) {
	if len(evidence) == 0 {
		return evidence, true
	}
	if scorer == nil {
		return evidence, false
	}
	if topN <= 0 || topN > len(evidence) {
		topN = len(evidence)
	}

	head := make([]domain.Evidence, topN)
	copy(head, evidence[:topN])

	texts := make([]string, len(head))
	for i, ev := range head {
		texts[i] = ev.TextExcerpt
	}

	scores, err := scorer.ScoreCandidates(ctx, question, texts)
	if err != nil {
		slog.Warn("rerank_failed_open", "error", err, "candidates", len(head))
		return evidence, false
	}
	if len(scores) != len(head) {
		slog.Warn("rerank_failed_open", "error", "score count mismatch", "scores", len(scores), "candidates", len(head))
		return evidence, false
	}

	for i := range head {
		head[i].RelevanceScore = scores[i]
	}

	// Stable sort keeps fusion order for equal cross-encoder scores.
	sort.SliceStable(head, func(i, j int) bool {
		return head[i].RelevanceScore > head[j].RelevanceScore
	})

	if topN == len(evidence) {
		return head, true
	}

	out := make([]domain.Evidence, 0, len(evidence))
	out = append(out, head...)
	out = append(out, evidence[topN:]...)
	return out, true
}
