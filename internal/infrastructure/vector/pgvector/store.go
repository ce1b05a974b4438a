// Package pgvector implements the vector index on Postgres with the pgvector
// extension. It is the single-box alternative to Qdrant: one database serves
// documents, chunks and embeddings.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"

	"github.com/regulait/parecer/internal/core/domain"
)

type Store struct {
	db *sql.DB

	ensureMu    sync.Mutex
	ensuredDims int
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// IndexChunks upserts one embedding row per chunk inside a transaction.
// The table is created lazily because the vector dimension is only known
// once the first embedding arrives.
func (s *Store) IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("pgvector upsert: %d chunks for %d vectors", len(chunks), len(vectors))
	}

	if err := s.ensureSchema(ctx, len(vectors[0])); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin embeddings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunk_embeddings (chunk_id, document_id, embedding)
VALUES ($1, $2, $3::vector)
ON CONFLICT (chunk_id) DO UPDATE SET embedding = EXCLUDED.embedding
`)
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		_, err := stmt.ExecContext(ctx, chunk.ChunkID, chunk.DocumentID, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("insert embedding %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit embeddings tx: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RankedResult, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT chunk_id, 1 - (embedding <=> $1::vector) AS score
FROM chunk_embeddings
ORDER BY embedding <=> $1::vector
LIMIT $2
`, pgvector.NewVector(queryVector), limit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "pgvector search", err)
	}
	defer rows.Close()

	var ranked []domain.RankedResult
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		ranked = append(ranked, domain.RankedResult{
			ChunkID: chunkID,
			Score:   score,
			Rank:    len(ranked) + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding rows: %w", err)
	}
	return ranked, nil
}

func (s *Store) ensureSchema(ctx context.Context, dims int) error {
	s.ensureMu.Lock()
	if s.ensuredDims == dims {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082503)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_document_id ON chunk_embeddings(document_id);
`, dims)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}

	s.ensureMu.Lock()
	s.ensuredDims = dims
	s.ensureMu.Unlock()
	return nil
}
