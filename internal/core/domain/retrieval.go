package domain

// RetrievalStrategy selects which index branches serve a question.
type RetrievalStrategy string

const (
	StrategyVectorOnly   RetrievalStrategy = "vector_only"
	StrategyLexicalOnly  RetrievalStrategy = "lexical_only"
	StrategyHybrid       RetrievalStrategy = "hybrid"
	StrategyHybridRerank RetrievalStrategy = "hybrid_rerank"
)

// ParseStrategy accepts the wire names plus the legacy "bm25_only" alias.
func ParseStrategy(raw string) (RetrievalStrategy, error) {
	switch raw {
	case string(StrategyVectorOnly):
		return StrategyVectorOnly, nil
	case string(StrategyLexicalOnly), "bm25_only":
		return StrategyLexicalOnly, nil
	case string(StrategyHybrid):
		return StrategyHybrid, nil
	case string(StrategyHybridRerank):
		return StrategyHybridRerank, nil
	default:
		return "", WrapError(ErrInvalidStrategy, "parse strategy", errUnknownStrategy(raw))
	}
}

type errUnknownStrategy string

func (e errUnknownStrategy) Error() string {
	return "unknown strategy: " + string(e)
}

// Source names used as fusion list keys and in Evidence.SourceRanks.
const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
)

// RankedResult is one hit from a single index branch. Score semantics are
// branch-local (cosine, BM25 or RRF) and never comparable across branches.
type RankedResult struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

// FusedResult is one chunk after reciprocal rank fusion. SourceRanks holds the
// 1-based rank per source, present only for sources that returned the chunk.
type FusedResult struct {
	ChunkID     string         `json:"chunk_id"`
	FusedScore  float64        `json:"fused_score"`
	SourceRanks map[string]int `json:"source_ranks"`
}

// Evidence is a retrieved excerpt plus its provenance, ranked for the caller.
type Evidence struct {
	ChunkID        string  `json:"chunk_id"`
	TextExcerpt    string  `json:"text_excerpt"`
	DocumentID     string  `json:"document_id"`
	PageNumber     int     `json:"page_number,omitempty"`
	SourceLabel    string  `json:"source_label,omitempty"`
	DocType        string  `json:"doc_type,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	Rank           int     `json:"rank"`
}

type AnswerRequest struct {
	Question  string
	K         int
	Strategy  RetrievalStrategy
	UseRerank bool
}

type AnswerResult struct {
	Answer   string            `json:"answer"`
	Evidence []Evidence        `json:"evidence"`
	Verdict  ValidationVerdict `json:"verdict"`
	Strategy RetrievalStrategy `json:"strategy"`
}
