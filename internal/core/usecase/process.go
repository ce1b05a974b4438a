package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
)

const classifyExcerptChars = 1200

// ProcessUseCase turns an uploaded document into searchable chunks: extract
// page text, classify the norm, split into chunks, embed and index into both
// the vector and the lexical index. Failures park the document in status
// "failed" with the reason so operators can retry after fixing the cause.
type ProcessUseCase struct {
	repo       ports.DocumentRepository
	chunks     ports.ChunkStore
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	chunker    ports.Chunker
	embedder   ports.Embedder
	vectorIdx  ports.VectorIndex
	lexicalIdx ports.LexicalIndex
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	chunks ports.ChunkStore,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorIdx ports.VectorIndex,
	lexicalIdx ports.LexicalIndex,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:       repo,
		chunks:     chunks,
		extractor:  extractor,
		classifier: classifier,
		chunker:    chunker,
		embedder:   embedder,
		vectorIdx:  vectorIdx,
		lexicalIdx: lexicalIdx,
	}
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark document %s processing: %w", doc.ID, err)
	}

	if err := uc.process(ctx, doc); err != nil {
		uc.markFailed(ctx, doc.ID, err)
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("mark document %s ready: %w", doc.ID, err)
	}

	slog.Info("document_processed", "document_id", doc.ID, "filename", doc.Filename)
	return nil
}

func (uc *ProcessUseCase) process(ctx context.Context, doc *domain.Document) error {
	pages, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	pages = dropBlankPages(pages)
	if len(pages) == 0 {
		return fmt.Errorf("extract text: document has no extractable text")
	}

	cls := uc.classify(ctx, doc, pages)

	chunks := uc.buildChunks(doc, cls, pages)
	if len(chunks) == 0 {
		return fmt.Errorf("chunk text: no chunks produced")
	}

	if err := uc.chunks.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := uc.vectorIdx.IndexChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector index: %w", err)
	}
	if err := uc.lexicalIdx.IndexChunks(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks in lexical index: %w", err)
	}

	return nil
}

// classify never fails the pipeline: an unclassified document is still
// searchable, so classifier trouble degrades to the fallback type.
func (uc *ProcessUseCase) classify(ctx context.Context, doc *domain.Document, pages []domain.PageContent) domain.Classification {
	excerpt := truncateRunes(joinPages(pages), classifyExcerptChars)

	cls, err := uc.classifier.Classify(ctx, doc.Filename, excerpt)
	if err != nil {
		slog.Warn("classification_failed", "document_id", doc.ID, "error", err)
		cls = domain.Classification{DocType: domain.DocTypeOther, Precedence: domain.PrecedenceOther}
	}

	if err := uc.repo.SaveClassification(ctx, doc.ID, cls); err != nil {
		slog.Warn("save_classification_failed", "document_id", doc.ID, "error", err)
	}
	return cls
}

func (uc *ProcessUseCase) buildChunks(doc *domain.Document, cls domain.Classification, pages []domain.PageContent) []domain.Chunk {
	label := sourceLabel(doc.Filename)

	var chunks []domain.Chunk
	index := 0
	for _, page := range pages {
		for _, text := range uc.chunker.Split(page.Text) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				ChunkID:     domain.ChunkID(doc.ID, index),
				DocumentID:  doc.ID,
				ChunkIndex:  index,
				PageNumber:  page.Page,
				SourceLabel: label,
				DocType:     cls.DocType,
				Text:        text,
			})
			index++
		}
	}
	return chunks
}

func (uc *ProcessUseCase) markFailed(ctx context.Context, documentID string, cause error) {
	// Keep the failure write alive even when the triggering context died.
	ctx = context.WithoutCancel(ctx)
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, cause.Error()); err != nil {
		slog.Error("mark_document_failed_errored", "document_id", documentID, "error", err)
	}
}

func sourceLabel(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return filename
	}
	return stem
}

func joinPages(pages []domain.PageContent) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n")
}

func dropBlankPages(pages []domain.PageContent) []domain.PageContent {
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out
}
