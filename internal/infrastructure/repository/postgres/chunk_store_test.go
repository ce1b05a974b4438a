package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/regulait/parecer/internal/core/domain"
)

func newChunkStoreWithMock(t *testing.T) (*ChunkStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkStore{db: db}, mock, func() { _ = db.Close() }
}

func TestSaveChunksUpsertsInOneTransaction(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO chunks")
	prep.ExpectExec().
		WithArgs("doc-1:0", "doc-1", 0, 1, "resolucao_123", "Resolução", "Art. 1º").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("doc-1:1", "doc-1", 1, 2, "resolucao_123", "Resolução", "Art. 2º").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	chunks := []domain.Chunk{
		{ChunkID: "doc-1:0", DocumentID: "doc-1", ChunkIndex: 0, PageNumber: 1, SourceLabel: "resolucao_123", DocType: "Resolução", Text: "Art. 1º"},
		{ChunkID: "doc-1:1", DocumentID: "doc-1", ChunkIndex: 1, PageNumber: 2, SourceLabel: "resolucao_123", DocType: "Resolução", Text: "Art. 2º"},
	}
	if err := store.SaveChunks(context.Background(), chunks); err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveChunksRollsBackOnInsertFailure(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO chunks")
	prep.ExpectExec().
		WithArgs("doc-1:0", "doc-1", 0, 1, "resolucao_123", "Resolução", "Art. 1º").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	chunks := []domain.Chunk{
		{ChunkID: "doc-1:0", DocumentID: "doc-1", ChunkIndex: 0, PageNumber: 1, SourceLabel: "resolucao_123", DocType: "Resolução", Text: "Art. 1º"},
	}
	err := store.SaveChunks(context.Background(), chunks)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveChunksEmptyInputIsNoop(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	if err := store.SaveChunks(context.Background(), nil); err != nil {
		t.Fatalf("SaveChunks() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetChunksReturnsFoundRowsOnly(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"chunk_id", "document_id", "chunk_index", "page_number", "source_label", "doc_type", "text"}).
		AddRow("doc-1:0", "doc-1", 0, 1, "resolucao_123", "Resolução", "Art. 1º").
		AddRow("doc-1:1", "doc-1", 1, 2, "resolucao_123", "Resolução", "Art. 2º")

	mock.ExpectQuery("FROM chunks").
		WithArgs("doc-1:0", "doc-1:1", "ghost:9").
		WillReturnRows(rows)

	chunks, err := store.GetChunks(context.Background(), []string{"doc-1:0", "doc-1:1", "ghost:9"})
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks["doc-1:1"].Text != "Art. 2º" {
		t.Fatalf("expected chunk text, got %q", chunks["doc-1:1"].Text)
	}
	if chunks["doc-1:1"].PageNumber != 2 {
		t.Fatalf("expected page 2, got %d", chunks["doc-1:1"].PageNumber)
	}
	if _, ok := chunks["ghost:9"]; ok {
		t.Fatalf("unknown id must be absent from result")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetChunksEmptyInputSkipsQuery(t *testing.T) {
	store, mock, done := newChunkStoreWithMock(t)
	defer done()

	chunks, err := store.GetChunks(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetChunks() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected empty map, got %v", chunks)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
