package ports

import (
	"context"
	"io"

	"github.com/regulait/parecer/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
}

// ChunkStore persists chunk records and serves lookups by identifier.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error
	GetChunks(ctx context.Context, chunkIDs []string) (map[string]domain.Chunk, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts page-structured plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.PageContent, error)
}

// DocumentClassifier assigns norm type and precedence to a document from
// its filename and the opening excerpt of its extracted text.
type DocumentClassifier interface {
	Classify(ctx context.Context, filename, excerpt string) (domain.Classification, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex indexes chunk embeddings and performs similarity search.
// Search never embeds text itself; callers pass a precomputed query vector.
type VectorIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RankedResult, error)
}

// LexicalIndex indexes chunk text and performs BM25-style term search.
type LexicalIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]domain.RankedResult, error)
}

// RerankScorer scores (question, passage) pairs with a cross-encoder style
// model. Scores align one-to-one with the passed texts.
type RerankScorer interface {
	ScoreCandidates(ctx context.Context, question string, texts []string) ([]float64, error)
}

// AnswerGenerator creates text from a fully built prompt.
type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
	GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error)
}

// AuditLogger records answer interactions for the compliance trail.
type AuditLogger interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
