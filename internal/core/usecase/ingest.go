package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
)

// IngestUseCase accepts a source document, stores the raw bytes and enqueues
// it for asynchronous processing by the worker.
type IngestUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestUseCase(repo ports.DocumentRepository, storage ports.ObjectStorage, queue ports.MessageQueue) *IngestUseCase {
	return &IngestUseCase{repo: repo, storage: storage, queue: queue}
}

// Upload persists the document and publishes the ingestion event. The
// returned document is in status "uploaded"; processing happens out of band.
func (uc *IngestUseCase) Upload(ctx context.Context, filename, mimeType string, data io.Reader) (*domain.Document, error) {
	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}

	id := uuid.NewString()
	storagePath := id + strings.ToLower(filepath.Ext(filename))

	if err := uc.storage.Save(ctx, storagePath, data); err != nil {
		return nil, fmt.Errorf("save document %s: %w", id, err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storagePath,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document %s: %w", id, err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, id); err != nil {
		// The document stays in "uploaded"; reprocessing can be triggered later.
		slog.Error("publish_ingest_event_failed", "document_id", id, "error", err)
		return doc, nil
	}

	slog.Info("document_uploaded", "document_id", id, "filename", filename, "mime_type", mimeType)
	return doc, nil
}

// GetByID exposes document state for the status endpoint.
func (uc *IngestUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", fmt.Errorf("document id is required"))
	}
	return uc.repo.GetByID(ctx, id)
}
