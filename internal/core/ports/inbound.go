package ports

import (
	"context"
	"io"

	"github.com/regulait/parecer/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for grounded question answering.
type QuestionAnswerer interface {
	AnswerQuestion(ctx context.Context, req domain.AnswerRequest) (*domain.AnswerResult, error)
}

// EvidenceSearcher is the inbound contract for raw evidence retrieval.
type EvidenceSearcher interface {
	SearchEvidence(ctx context.Context, question string, strategy domain.RetrievalStrategy, k int) ([]domain.Evidence, []string, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
