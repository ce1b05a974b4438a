package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/regulait/parecer/internal/core/domain"
)

type fakeStorage struct {
	objects map[string][]byte
}

func (s *fakeStorage) Save(ctx context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestExtractReadsDocumentFromStorage(t *testing.T) {
	storage := &fakeStorage{objects: map[string][]byte{
		"doc-1.txt": []byte("Prazo de licença: 90 dias."),
	}}
	extractor := NewExtractor(storage)

	doc := &domain.Document{
		ID:          "doc-1",
		Filename:    "norma.txt",
		MimeType:    "text/plain",
		StoragePath: "doc-1.txt",
	}
	pages, err := extractor.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Page != 0 {
		t.Fatalf("expected page 0 for plain text, got %d", pages[0].Page)
	}
	if pages[0].Text != "Prazo de licença: 90 dias." {
		t.Fatalf("unexpected text: %q", pages[0].Text)
	}
}

func TestExtractMissingObjectFails(t *testing.T) {
	extractor := NewExtractor(&fakeStorage{})

	doc := &domain.Document{ID: "doc-1", Filename: "norma.txt", StoragePath: "gone.txt"}
	if _, err := extractor.Extract(context.Background(), doc); err == nil {
		t.Fatal("expected error for missing stored object")
	}
}

func TestExtractBytesPlainReplacesInvalidUTF8(t *testing.T) {
	pages, err := extractBytes([]byte("hello\x80world"), ".txt", "")
	if err != nil {
		t.Fatalf("extractBytes: %v", err)
	}
	if pages[0].Text != "hello�world" {
		t.Fatalf("got %q", pages[0].Text)
	}
}

func TestExtractBytesExcelMapsSheetsToPages(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "Parâmetro")
	f.SetCellValue("Sheet1", "B1", "Limite")
	f.SetCellValue("Sheet1", "A2", "DBO")
	f.SetCellValue("Sheet1", "B2", "120 mg/L")
	if _, err := f.NewSheet("Anexo II"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	f.SetCellValue("Anexo II", "A1", "Vigência")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	pages, err := extractBytes(buf.Bytes(), ".xlsx", "")
	if err != nil {
		t.Fatalf("extractBytes: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected one page per sheet, got %d", len(pages))
	}
	if pages[0].Page != 1 || pages[1].Page != 2 {
		t.Fatalf("expected sheet-ordered pages 1 and 2, got %d and %d", pages[0].Page, pages[1].Page)
	}
	if !strings.Contains(pages[0].Text, "DBO\t120 mg/L") {
		t.Fatalf("expected tab-joined row in first sheet, got %q", pages[0].Text)
	}
	if !strings.Contains(pages[1].Text, "Vigência") {
		t.Fatalf("expected second sheet content, got %q", pages[1].Text)
	}
}

func TestExtractBytesHTMLStripsMarkup(t *testing.T) {
	page := []byte(`<html><head>
		<style>body { color: red; }</style>
		<script>alert("x");</script>
	</head><body>
		<h1>Resolução 42</h1>
		<p>Prazo de <b>90 dias</b>.</p>
	</body></html>`)

	pages, err := extractBytes(page, ".html", "")
	if err != nil {
		t.Fatalf("extractBytes: %v", err)
	}
	if len(pages) != 1 || pages[0].Page != 0 {
		t.Fatalf("expected single page 0, got %+v", pages)
	}
	text := pages[0].Text
	if !strings.Contains(text, "Resolução 42") || !strings.Contains(text, "90 dias") {
		t.Fatalf("expected body text, got %q", text)
	}
	if strings.Contains(text, "alert") || strings.Contains(text, "color: red") {
		t.Fatalf("expected script and style content to be dropped, got %q", text)
	}
	if strings.Contains(text, "<") {
		t.Fatalf("expected markup to be stripped, got %q", text)
	}
}

func TestExtractBytesPDFRejectsInvalidData(t *testing.T) {
	if _, err := extractBytes([]byte("not a pdf"), ".pdf", ""); err == nil {
		t.Fatal("expected error for invalid pdf bytes")
	}
}

func TestExtractBytesUnsupportedFormatFails(t *testing.T) {
	_, err := extractBytes([]byte{0x00, 0x01}, ".bin", "application/octet-stream")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), ".bin") {
		t.Fatalf("expected extension in error, got %v", err)
	}
}

func TestExtractBytesFallsBackToMimeType(t *testing.T) {
	pages, err := extractBytes([]byte("conteúdo textual"), ".dat", "text/plain")
	if err != nil {
		t.Fatalf("extractBytes: %v", err)
	}
	if pages[0].Text != "conteúdo textual" {
		t.Fatalf("got %q", pages[0].Text)
	}
}
