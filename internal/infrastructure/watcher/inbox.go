// Package watcher feeds documents dropped into the inbox directory to
// the ingestion pipeline.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/regulait/parecer/internal/core/ports"
)

const defaultSettle = 500 * time.Millisecond

// Inbox watches a flat directory and uploads every new file through the
// ingestion pipeline. Ingested files are removed from the inbox; failed
// ones stay in place for inspection.
type Inbox struct {
	path     string
	ingestor ports.DocumentIngestor
	settle   time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewInbox(path string, ingestor ports.DocumentIngestor) *Inbox {
	return &Inbox{
		path:     path,
		ingestor: ingestor,
		settle:   defaultSettle,
		timers:   make(map[string]*time.Timer),
	}
}

// Run watches the inbox until ctx is cancelled. Files already present at
// startup are ingested as well.
func (in *Inbox) Run(ctx context.Context) error {
	if err := os.MkdirAll(in.path, 0o755); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start inbox watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(in.path); err != nil {
		return fmt.Errorf("watch inbox directory: %w", err)
	}
	slog.Info("inbox_watcher_started", "path", in.path)

	in.sweepExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			in.stopTimers()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				in.scheduleIngest(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox_watcher_error", "error", err)
		}
	}
}

func (in *Inbox) sweepExisting(ctx context.Context) {
	entries, err := os.ReadDir(in.path)
	if err != nil {
		slog.Warn("inbox_sweep_failed", "path", in.path, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		in.scheduleIngest(ctx, filepath.Join(in.path, entry.Name()))
	}
}

// scheduleIngest waits for the file to settle before uploading: a copy
// into the inbox arrives as a burst of write events.
func (in *Inbox) scheduleIngest(ctx context.Context, path string) {
	if !wantsFile(path) {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.timers[path]; ok {
		t.Stop()
	}
	in.timers[path] = time.AfterFunc(in.settle, func() {
		in.mu.Lock()
		delete(in.timers, path)
		in.mu.Unlock()
		in.ingestFile(ctx, path)
	})
}

func (in *Inbox) ingestFile(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	file, err := os.Open(path)
	if err != nil {
		slog.Warn("inbox_open_failed", "path", path, "error", err)
		return
	}
	defer file.Close()

	filename := filepath.Base(path)
	doc, err := in.ingestor.Upload(ctx, filename, mimeTypeFor(filename), file)
	if err != nil {
		slog.Error("inbox_ingest_failed", "path", path, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		slog.Warn("inbox_cleanup_failed", "path", path, "error", err)
	}
	slog.Info("inbox_document_ingested", "document_id", doc.ID, "filename", filename)
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for path, t := range in.timers {
		t.Stop()
		delete(in.timers, path)
	}
}

// wantsFile filters out hidden files and editor/copy temporaries.
func wantsFile(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tmp", ".part", ".swp", ".crdownload":
		return false
	}
	return true
}

func mimeTypeFor(filename string) string {
	t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if t == "" {
		return "application/octet-stream"
	}
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
