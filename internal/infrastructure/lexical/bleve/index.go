// Package bleve provides the on-disk lexical index for chunk text. Chunks
// are analyzed with the Portuguese analyzer so queries match across stems
// ("licenciamento" finds "licenciamentos") and stop words do not pollute
// term matching.
package bleve

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/regulait/parecer/internal/core/domain"
)

type Index struct {
	index bleve.Index
}

// chunkDocument is the indexed projection of a chunk. The source text lives
// in the chunk store; the lexical index only needs searchable fields.
type chunkDocument struct {
	Content     string `json:"content"`
	DocumentID  string `json:"document_id"`
	SourceLabel string `json:"source_label"`
	DocType     string `json:"doc_type"`
	PageNumber  int    `json:"page_number"`
}

// Open opens the index at path, creating it when absent. Changing the
// mapping requires removing the index directory and re-processing documents.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("open bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = pt.AnalyzerName

	// Source labels are filename stems; Portuguese stemming mangles them.
	labelField := bleve.NewTextFieldMapping()
	labelField.Analyzer = standard.Name

	keywordField := bleve.NewKeywordFieldMapping()
	pageField := bleve.NewNumericFieldMapping()

	chunkMapping := bleve.NewDocumentMapping()
	chunkMapping.AddFieldMappingsAt("content", contentField)
	chunkMapping.AddFieldMappingsAt("source_label", labelField)
	chunkMapping.AddFieldMappingsAt("doc_type", keywordField)
	chunkMapping.AddFieldMappingsAt("document_id", keywordField)
	chunkMapping.AddFieldMappingsAt("page_number", pageField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = chunkMapping
	im.DefaultAnalyzer = pt.AnalyzerName
	return im
}

// IndexChunks upserts chunks in one batch. Chunk identifiers are stable per
// document and index, so re-processing a document overwrites its entries.
func (b *Index) IndexChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chunkDocument{
			Content:     chunk.Text,
			DocumentID:  chunk.DocumentID,
			SourceLabel: chunk.SourceLabel,
			DocType:     chunk.DocType,
			PageNumber:  chunk.PageNumber,
		}
		if err := batch.Index(chunk.ChunkID, doc); err != nil {
			return fmt.Errorf("batch chunk %s: %w", chunk.ChunkID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("index chunk batch: %w", err)
	}
	return nil
}

func (b *Index) Search(ctx context.Context, query string, limit int) ([]domain.RankedResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	request := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	request.Size = limit

	result, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "bleve search", err)
	}

	ranked := make([]domain.RankedResult, 0, len(result.Hits))
	for i, hit := range result.Hits {
		ranked = append(ranked, domain.RankedResult{
			ChunkID: hit.ID,
			Score:   hit.Score,
			Rank:    i + 1,
		})
	}
	return ranked, nil
}

func (b *Index) DocCount() (uint64, error) {
	return b.index.DocCount()
}

func (b *Index) Close() error {
	return b.index.Close()
}
