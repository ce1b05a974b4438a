package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/regulait/parecer/internal/core/domain"
)

// ChunkStore is the source of truth for chunk text and metadata. Both index
// backends store only identifiers and scores; evidence hydration reads here.
type ChunkStore struct {
	db *sql.DB
}

func NewChunkStore(db *sql.DB) *ChunkStore {
	return &ChunkStore{db: db}
}

func (s *ChunkStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082502)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	page_number INTEGER NOT NULL DEFAULT 0,
	source_label TEXT,
	doc_type TEXT,
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveChunks upserts all chunks of a document in one transaction. Chunk
// identifiers are deterministic, so re-processing overwrites prior rows.
func (s *ChunkStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunks tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (chunk_id, document_id, chunk_index, page_number, source_label, doc_type, text)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (chunk_id) DO UPDATE
SET page_number = EXCLUDED.page_number,
	source_label = EXCLUDED.source_label,
	doc_type = EXCLUDED.doc_type,
	text = EXCLUDED.text
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.ExecContext(ctx,
			chunk.ChunkID, chunk.DocumentID, chunk.ChunkIndex, chunk.PageNumber,
			chunk.SourceLabel, chunk.DocType, chunk.Text,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

// GetChunks loads chunks by identifier. Unknown identifiers are simply
// absent from the result map; the caller decides whether that is a problem.
func (s *ChunkStore) GetChunks(ctx context.Context, chunkIDs []string) (map[string]domain.Chunk, error) {
	result := make(map[string]domain.Chunk, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(chunkIDs))
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
SELECT chunk_id, document_id, chunk_index, page_number, source_label, doc_type, text
FROM chunks
WHERE chunk_id IN (%s)
`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		result[chunk.ChunkID] = *chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return result, nil
}

type chunkScanner interface {
	Scan(dest ...any) error
}

func scanChunk(scanner chunkScanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var sourceLabel, docType sql.NullString

	err := scanner.Scan(
		&chunk.ChunkID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.PageNumber,
		&sourceLabel, &docType, &chunk.Text,
	)
	if err != nil {
		return nil, err
	}
	chunk.SourceLabel = sourceLabel.String
	chunk.DocType = docType.String
	return &chunk, nil
}
