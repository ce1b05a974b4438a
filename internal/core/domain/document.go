package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	DocType     string         `json:"doc_type,omitempty"`
	Precedence  int            `json:"precedence,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Confidence  float64        `json:"confidence,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Norm types in the Brazilian regulatory hierarchy, ordered by precedence.
const (
	DocTypeLei         = "Lei"
	DocTypeDecreto     = "Decreto"
	DocTypeResolucao   = "Resolução"
	DocTypePortaria    = "Portaria"
	DocTypeDeliberacao = "Deliberação"
	DocTypeOther       = "Outro"
)

// PrecedenceOther ranks unclassified documents below every named norm type.
const PrecedenceOther = 9

// PrecedenceForDocType maps a norm type to its rank in the hierarchy; lower
// is more authoritative.
func PrecedenceForDocType(docType string) int {
	switch docType {
	case DocTypeLei:
		return 1
	case DocTypeDecreto:
		return 2
	case DocTypeResolucao:
		return 3
	case DocTypePortaria:
		return 4
	case DocTypeDeliberacao:
		return 5
	default:
		return PrecedenceOther
	}
}

// Classification is the LLM-assigned document typing used for precedence-aware
// retrieval metadata. DocType values follow the Brazilian norm hierarchy
// (Lei, Decreto, Resolução, Portaria, Deliberação).
type Classification struct {
	DocType    string   `json:"doc_type"`
	Precedence int      `json:"precedence"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
}

// Chunk is the immutable retrievable unit. The core only reads chunks by
// identifier; creation belongs to the ingestion pipeline.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	ChunkIndex  int    `json:"chunk_index"`
	PageNumber  int    `json:"page_number,omitempty"`
	SourceLabel string `json:"source_label,omitempty"`
	DocType     string `json:"doc_type,omitempty"`
	Text        string `json:"text"`
}

// ChunkID builds the stable identifier for a chunk of a document.
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

// PageContent is extractor output: the text of one page (or sheet) of a
// source document. Page 0 means the source has no page structure.
type PageContent struct {
	Page int
	Text string
}
