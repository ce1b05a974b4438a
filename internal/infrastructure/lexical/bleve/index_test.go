package bleve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/regulait/parecer/internal/core/domain"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := Open(filepath.Join(t.TempDir(), "chunks.bleve"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { index.Close() })
	return index
}

func testChunk(id, docID, text string) domain.Chunk {
	return domain.Chunk{
		ChunkID:     id,
		DocumentID:  docID,
		Text:        text,
		PageNumber:  1,
		SourceLabel: "resolucao_123",
		DocType:     "Resolução",
	}
}

func TestSearchFindsMatchingChunk(t *testing.T) {
	index := openTestIndex(t)

	err := index.IndexChunks(context.Background(), []domain.Chunk{
		testChunk("doc-1:0", "doc-1", "O prazo de validade da licença ambiental é de noventa dias."),
		testChunk("doc-1:1", "doc-1", "As sanções administrativas aplicam-se ao infrator."),
	})
	if err != nil {
		t.Fatalf("index chunks: %v", err)
	}

	hits, err := index.Search(context.Background(), "prazo de validade", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	if hits[0].ChunkID != "doc-1:0" {
		t.Errorf("expected doc-1:0 first, got %s", hits[0].ChunkID)
	}
	if hits[0].Rank != 1 {
		t.Errorf("expected rank 1, got %d", hits[0].Rank)
	}
	if hits[0].Score <= 0 {
		t.Errorf("expected positive score, got %f", hits[0].Score)
	}
}

func TestSearchMatchesPortuguesePlural(t *testing.T) {
	index := openTestIndex(t)

	err := index.IndexChunks(context.Background(), []domain.Chunk{
		testChunk("doc-1:0", "doc-1", "O prazo para recurso é de quinze dias."),
	})
	if err != nil {
		t.Fatalf("index chunks: %v", err)
	}

	hits, err := index.Search(context.Background(), "prazos", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected stemmed match for plural query, got %d hits", len(hits))
	}
}

func TestSearchRespectsLimitAndRanks(t *testing.T) {
	index := openTestIndex(t)

	err := index.IndexChunks(context.Background(), []domain.Chunk{
		testChunk("doc-1:0", "doc-1", "Licença ambiental para operação."),
		testChunk("doc-1:1", "doc-1", "Licença ambiental para instalação e operação de unidade."),
		testChunk("doc-1:2", "doc-1", "Licença ambiental."),
	})
	if err != nil {
		t.Fatalf("index chunks: %v", err)
	}

	hits, err := index.Search(context.Background(), "licença ambiental", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected limit of 2 hits, got %d", len(hits))
	}
	for i, hit := range hits {
		if hit.Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, hit.Rank)
		}
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("expected descending scores, got %f then %f", hits[0].Score, hits[1].Score)
	}
}

func TestSearchEmptyQueryReturnsNothing(t *testing.T) {
	index := openTestIndex(t)

	err := index.IndexChunks(context.Background(), []domain.Chunk{
		testChunk("doc-1:0", "doc-1", "Qualquer conteúdo."),
	})
	if err != nil {
		t.Fatalf("index chunks: %v", err)
	}

	hits, err := index.Search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits != nil {
		t.Errorf("expected no results for blank query, got %v", hits)
	}
}

func TestIndexChunksOverwritesSameID(t *testing.T) {
	index := openTestIndex(t)
	ctx := context.Background()

	if err := index.IndexChunks(ctx, []domain.Chunk{testChunk("doc-1:0", "doc-1", "texto antigo sobre multas")}); err != nil {
		t.Fatalf("index chunks: %v", err)
	}
	if err := index.IndexChunks(ctx, []domain.Chunk{testChunk("doc-1:0", "doc-1", "texto novo sobre prazos")}); err != nil {
		t.Fatalf("reindex chunks: %v", err)
	}

	stale, err := index.Search(ctx, "multas", 10)
	if err != nil {
		t.Fatalf("search stale: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("expected old text gone after overwrite, got %d hits", len(stale))
	}

	fresh, err := index.Search(ctx, "prazos", 10)
	if err != nil {
		t.Fatalf("search fresh: %v", err)
	}
	if len(fresh) != 1 {
		t.Errorf("expected new text indexed, got %d hits", len(fresh))
	}
}

func TestOpenReusesExistingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.bleve")
	ctx := context.Background()

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	if err := first.IndexChunks(ctx, []domain.Chunk{testChunk("doc-1:0", "doc-1", "conteúdo persistente")}); err != nil {
		t.Fatalf("index chunks: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	defer second.Close()

	hits, err := second.Search(ctx, "persistente", 10)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected indexed chunk to survive reopen, got %d hits", len(hits))
	}

	count, err := second.DocCount()
	if err != nil {
		t.Fatalf("doc count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 indexed chunk, got %d", count)
	}
}
