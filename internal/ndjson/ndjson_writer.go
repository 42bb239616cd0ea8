package ndjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Writer appends registration records to the audit log, one JSON document
// per line. A record is encoded before the lock is taken and written with a
// single call, so the paging readers in this package never see half a line.
type Writer struct {
	path string

	mu sync.Mutex
	f  *os.File
}

// NewWriter opens (or creates) the log at path for appending, creating the
// data dir if needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return &Writer{path: path, f: f}, nil
}

// Write appends v. It returns os.ErrClosed once the writer is closed.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return os.ErrClosed
	}
	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(w.path), err)
	}
	return nil
}

// Close flushes the log to disk. Closing twice is fine.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil

	syncErr := f.Sync()
	if err := f.Close(); err != nil {
		return err
	}
	return syncErr
}
