package usecase

import (
	"sort"

	"github.com/regulait/parecer/internal/core/domain"
)

const defaultRRFK = 60

// fuseRankedLists merges per-source ranked lists with reciprocal rank fusion.
// A result at 1-based rank r contributes 1/(kConstant+r) to its chunk's fused
// score; contributions from sources sharing a chunk id are summed, so the
// output never carries duplicates. Raw branch scores are ignored on purpose:
// BM25 and cosine scales are not comparable, ranks are.
func fuseRankedLists(lists map[string][]domain.RankedResult, kConstant float64) []domain.FusedResult {
	if kConstant <= 0 {
		kConstant = defaultRRFK
	}

	acc := make(map[string]domain.FusedResult)
	for source, results := range lists {
		for i, result := range results {
			rank := i + 1
			fused, ok := acc[result.ChunkID]
			if !ok {
				fused = domain.FusedResult{
					ChunkID:     result.ChunkID,
					SourceRanks: make(map[string]int, len(lists)),
				}
			}
			fused.FusedScore += 1.0 / (kConstant + float64(rank))
			if prev, seen := fused.SourceRanks[source]; !seen || rank < prev {
				fused.SourceRanks[source] = rank
			}
			acc[result.ChunkID] = fused
		}
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, fused := range acc {
		out = append(out, fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		// Equal fused scores: the chunk that reached a better position in
		// any single source wins, then chunk id keeps the order deterministic.
		mi, mj := minSourceRank(out[i].SourceRanks), minSourceRank(out[j].SourceRanks)
		if mi != mj {
			return mi < mj
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return out
}

func minSourceRank(ranks map[string]int) int {
	min := 0
	for _, rank := range ranks {
		if min == 0 || rank < min {
			min = rank
		}
	}
	if min == 0 {
		return int(^uint(0) >> 1)
	}
	return min
}

func trimEvidence(evidence []domain.Evidence, limit int) []domain.Evidence {
	if limit <= 0 || len(evidence) <= limit {
		return evidence
	}
	return evidence[:limit]
}
