package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
)

type RetrievalConfig struct {
	DefaultK        int
	MaxK            int
	RRFK            float64
	RerankTopN      int
	BranchTimeout   time.Duration
	RerankTimeout   time.Duration
	MaxExcerptChars int
}

func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		DefaultK:        5,
		MaxK:            20,
		RRFK:            60,
		RerankTopN:      20,
		BranchTimeout:   2 * time.Second,
		RerankTimeout:   1500 * time.Millisecond,
		MaxExcerptChars: 800,
	}
}

func (c RetrievalConfig) normalize() RetrievalConfig {
	out := c
	def := DefaultRetrievalConfig()
	if out.DefaultK <= 0 {
		out.DefaultK = def.DefaultK
	}
	if out.MaxK <= 0 {
		out.MaxK = def.MaxK
	}
	if out.MaxK < out.DefaultK {
		out.MaxK = out.DefaultK
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = def.RerankTopN
	}
	if out.BranchTimeout <= 0 {
		out.BranchTimeout = def.BranchTimeout
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = def.RerankTimeout
	}
	if out.MaxExcerptChars <= 0 {
		out.MaxExcerptChars = def.MaxExcerptChars
	}
	return out
}

// RetrieveUseCase orchestrates lexical and vector search, RRF fusion and
// optional reranking. It is stateless per call; all state lives in the
// index/store collaborators.
type RetrieveUseCase struct {
	embedder   ports.Embedder
	vectorIdx  ports.VectorIndex
	lexicalIdx ports.LexicalIndex
	chunks     ports.ChunkStore
	reranker   ports.RerankScorer
	cfg        RetrievalConfig
}

func NewRetrieveUseCase(
	embedder ports.Embedder,
	vectorIdx ports.VectorIndex,
	lexicalIdx ports.LexicalIndex,
	chunks ports.ChunkStore,
	reranker ports.RerankScorer,
	cfg RetrievalConfig,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:   embedder,
		vectorIdx:  vectorIdx,
		lexicalIdx: lexicalIdx,
		chunks:     chunks,
		reranker:   reranker,
		cfg:        cfg.normalize(),
	}
}

// Retrieve returns at most k evidence items for the question under the given
// strategy, plus user-facing warnings for every degraded branch. Unknown
// strategies and non-positive k are the only fatal inputs; index trouble
// degrades to partial or empty results.
func (uc *RetrieveUseCase) Retrieve(
	ctx context.Context,
	question string,
	strategy domain.RetrievalStrategy,
	k int,
) ([]domain.Evidence, []string, error) {
	if k < 1 {
		return nil, nil, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("k must be >= 1, got %d", k))
	}
	if k > uc.cfg.MaxK {
		k = uc.cfg.MaxK
	}

	var (
		evidence []domain.Evidence
		warnings []string
		err      error
	)

	switch strategy {
	case domain.StrategyVectorOnly:
		evidence, warnings, err = uc.retrieveVectorOnly(ctx, question, k)
	case domain.StrategyLexicalOnly:
		evidence, warnings, err = uc.retrieveLexicalOnly(ctx, question, k)
	case domain.StrategyHybrid:
		evidence, warnings, err = uc.retrieveHybrid(ctx, question, k, false)
	case domain.StrategyHybridRerank:
		evidence, warnings, err = uc.retrieveHybrid(ctx, question, k, true)
	default:
		return nil, nil, domain.WrapError(domain.ErrInvalidStrategy, "retrieve", fmt.Errorf("strategy %q", strategy))
	}
	if err != nil {
		return nil, nil, err
	}

	evidence = trimEvidence(evidence, k)
	for i := range evidence {
		evidence[i].Rank = i + 1
	}
	return evidence, warnings, nil
}

func (uc *RetrieveUseCase) retrieveVectorOnly(ctx context.Context, question string, k int) ([]domain.Evidence, []string, error) {
	results, err := uc.searchVector(ctx, question, k)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, []string{branchWarning(domain.SourceVector, err)}, nil
	}
	evidence, err := uc.hydrateRanked(ctx, results)
	if err != nil {
		return nil, nil, err
	}
	return evidence, nil, nil
}

func (uc *RetrieveUseCase) retrieveLexicalOnly(ctx context.Context, question string, k int) ([]domain.Evidence, []string, error) {
	results, err := uc.lexicalIdx.Search(ctx, question, k)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, []string{branchWarning(domain.SourceLexical, err)}, nil
	}
	evidence, err := uc.hydrateRanked(ctx, results)
	if err != nil {
		return nil, nil, err
	}
	return evidence, nil, nil
}

// retrieveHybrid issues both branch searches concurrently under one shared
// deadline. A branch that fails or misses the deadline degrades to zero
// results plus a warning; only parent-context cancellation aborts the call.
func (uc *RetrieveUseCase) retrieveHybrid(ctx context.Context, question string, k int, withRerank bool) ([]domain.Evidence, []string, error) {
	fetchK := k * 2

	branchCtx, cancel := context.WithTimeout(ctx, uc.cfg.BranchTimeout)
	defer cancel()

	var (
		wg         sync.WaitGroup
		vectorRes  []domain.RankedResult
		vectorErr  error
		lexicalRes []domain.RankedResult
		lexicalErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorRes, vectorErr = uc.searchVector(branchCtx, question, fetchK)
	}()
	go func() {
		defer wg.Done()
		lexicalRes, lexicalErr = uc.lexicalIdx.Search(branchCtx, question, fetchK)
	}()
	wg.Wait()

	// Parent cancellation discards partial branch results instead of merging.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var warnings []string
	lists := make(map[string][]domain.RankedResult, 2)
	if vectorErr != nil {
		warnings = append(warnings, branchWarning(domain.SourceVector, vectorErr))
	} else {
		lists[domain.SourceVector] = vectorRes
	}
	if lexicalErr != nil {
		warnings = append(warnings, branchWarning(domain.SourceLexical, lexicalErr))
	} else {
		lists[domain.SourceLexical] = lexicalRes
	}

	if len(lists) == 0 {
		return nil, warnings, nil
	}

	fused := fuseRankedLists(lists, uc.cfg.RRFK)
	evidence, err := uc.hydrateFused(ctx, fused)
	if err != nil {
		return nil, nil, err
	}

	if withRerank && len(evidence) > 0 {
		rerankCtx, rerankCancel := context.WithTimeout(ctx, uc.cfg.RerankTimeout)
		reranked, ok := rerankEvidence(rerankCtx, uc.reranker, question, evidence, uc.cfg.RerankTopN)
		rerankCancel()
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !ok {
			warnings = append(warnings, warnRerankUnavailable)
		}
		evidence = reranked
	}

	return evidence, warnings, nil
}

func (uc *RetrieveUseCase) searchVector(ctx context.Context, question string, limit int) ([]domain.RankedResult, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := uc.vectorIdx.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	return results, nil
}

func (uc *RetrieveUseCase) hydrateFused(ctx context.Context, fused []domain.FusedResult) ([]domain.Evidence, error) {
	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.ChunkID)
	}
	chunkMap, err := uc.lookupChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Evidence, 0, len(fused))
	for _, f := range fused {
		chunk, ok := chunkMap[f.ChunkID]
		if !ok {
			slog.Warn("chunk_missing_from_store", "chunk_id", f.ChunkID)
			continue
		}
		out = append(out, uc.evidenceFromChunk(chunk, f.FusedScore))
	}
	return out, nil
}

func (uc *RetrieveUseCase) hydrateRanked(ctx context.Context, results []domain.RankedResult) ([]domain.Evidence, error) {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	chunkMap, err := uc.lookupChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Evidence, 0, len(results))
	for _, r := range results {
		chunk, ok := chunkMap[r.ChunkID]
		if !ok {
			slog.Warn("chunk_missing_from_store", "chunk_id", r.ChunkID)
			continue
		}
		out = append(out, uc.evidenceFromChunk(chunk, r.Score))
	}
	return out, nil
}

func (uc *RetrieveUseCase) lookupChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	if len(ids) == 0 {
		return map[string]domain.Chunk{}, nil
	}
	chunkMap, err := uc.chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup chunks: %w", err)
	}
	return chunkMap, nil
}

func (uc *RetrieveUseCase) evidenceFromChunk(chunk domain.Chunk, score float64) domain.Evidence {
	return domain.Evidence{
		ChunkID:        chunk.ChunkID,
		TextExcerpt:    truncateRunes(chunk.Text, uc.cfg.MaxExcerptChars),
		DocumentID:     chunk.DocumentID,
		PageNumber:     chunk.PageNumber,
		SourceLabel:    chunk.SourceLabel,
		DocType:        chunk.DocType,
		RelevanceScore: score,
	}
}

const warnRerankUnavailable = "Reordenação indisponível; mantida a ordem de fusão."

func branchWarning(source string, err error) string {
	name := "vetorial"
	if source == domain.SourceLexical {
		name = "lexical"
	}

	slog.Warn("retrieval_branch_degraded", "branch", source, "error", err)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || domain.IsKind(err, domain.ErrProviderTimeout):
		return fmt.Sprintf("Busca %s excedeu o tempo limite; prosseguindo com resultados parciais.", name)
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return fmt.Sprintf("Busca %s indisponível; prosseguindo com resultados parciais.", name)
	default:
		return fmt.Sprintf("Busca %s falhou; prosseguindo com resultados parciais.", name)
	}
}
