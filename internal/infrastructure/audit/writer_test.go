package audit

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/regulait/parecer/internal/core/domain"
)

func testEvent(question string) domain.AuditEvent {
	return domain.AuditEvent{
		Timestamp:     time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		RequestID:     "req-1",
		EventType:     domain.AuditEventAnswer,
		Question:      question,
		Strategy:      "hybrid_rerank",
		K:             5,
		EvidenceCount: 3,
		Confidence:    domain.ConfidenceHigh,
		SupportScore:  0.82,
		ElapsedMS:     140,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

func TestRecordAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.jsonl")
	w, err := NewWriter(path, Options{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	if err := w.Record(ctx, testEvent("Qual o prazo da licença?")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Record(ctx, testEvent("Qual o limite de DBO?")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event domain.AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal line: %v", err)
	}
	if event.Question != "Qual o prazo da licença?" {
		t.Fatalf("unexpected question: %q", event.Question)
	}
	if event.Confidence != domain.ConfidenceHigh {
		t.Fatalf("unexpected confidence: %q", event.Confidence)
	}
	if event.SupportScore != 0.82 {
		t.Fatalf("unexpected support score: %v", event.SupportScore)
	}
	if strings.Contains(lines[0], "warnings") {
		t.Fatalf("expected empty warnings to be omitted, got %s", lines[0])
	}
}

func TestRecordRotatesWhenSizeExceeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "answers.jsonl")
	w, err := NewWriter(path, Options{MaxBytes: 280, CompressRotated: false})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := w.Record(ctx, testEvent("pergunta sobre licenciamento ambiental")); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	rotated, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(rotated) == 0 {
		t.Fatal("expected at least one rotated file")
	}

	total := len(readLines(t, path))
	for _, name := range rotated {
		total += len(readLines(t, name))
	}
	if total != 3 {
		t.Fatalf("expected 3 events across all files, got %d", total)
	}
}

func TestRotationCompressesWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "answers.jsonl")
	w, err := NewWriter(path, Options{MaxBytes: 280, CompressRotated: true})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := w.Record(ctx, testEvent("pergunta sobre condicionantes da outorga")); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	compressed, err := filepath.Glob(path + ".*.gz")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("expected a gzip-rotated file")
	}
	plain, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	for _, name := range plain {
		if !strings.HasSuffix(name, ".gz") {
			t.Fatalf("expected rotated file to be removed after compression: %s", name)
		}
	}

	f, err := os.Open(compressed[0])
	if err != nil {
		t.Fatalf("open compressed: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()

	var event domain.AuditEvent
	if err := json.NewDecoder(gz).Decode(&event); err != nil {
		t.Fatalf("decode compressed event: %v", err)
	}
	if event.Question != "pergunta sobre condicionantes da outorga" {
		t.Fatalf("unexpected question in rotated file: %q", event.Question)
	}
}

func TestOversizedEventStillWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.jsonl")
	w, err := NewWriter(path, Options{MaxBytes: 10})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Record(context.Background(), testEvent("pergunta maior que o limite")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("expected oversized event in place, got %d lines", len(lines))
	}
}

func TestNewWriterResumesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.jsonl")
	w, err := NewWriter(path, Options{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Record(context.Background(), testEvent("primeira")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w, err = NewWriter(path, Options{})
	if err != nil {
		t.Fatalf("NewWriter reopen: %v", err)
	}
	defer w.Close()
	if err := w.Record(context.Background(), testEvent("segunda")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if lines := readLines(t, path); len(lines) != 2 {
		t.Fatalf("expected 2 lines after reopen, got %d", len(lines))
	}
}
