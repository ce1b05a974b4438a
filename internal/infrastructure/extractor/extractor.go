// Package extractor turns stored source documents into page-structured
// plain text. Format detection uses the original filename extension first
// and the declared MIME type as fallback.
package extractor

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/regulait/parecer/internal/core/domain"
	"github.com/regulait/parecer/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageContent, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}

	return extractBytes(content, strings.ToLower(filepath.Ext(doc.Filename)), doc.MimeType)
}

func extractBytes(content []byte, ext, mimeType string) ([]domain.PageContent, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".xlsx":
		return extractExcel(content)
	case ".html", ".htm":
		return extractHTML(content)
	case ".txt", ".md":
		return extractPlain(content)
	}

	switch {
	case mimeType == "application/pdf":
		return extractPDF(content)
	case mimeType == "text/html":
		return extractHTML(content)
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return extractExcel(content)
	case strings.HasPrefix(mimeType, "text/"):
		return extractPlain(content)
	}

	return nil, fmt.Errorf("unsupported document format: ext=%q mime=%q", ext, mimeType)
}
