// Package repository provides the data access layer.
package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
)

// InteractionRepository appends query/response/context records to the
// interactions log. Records are append-only; nothing is ever rewritten.
type InteractionRepository interface {
	Append(record model.InteractionRecord) error
}

type fileInteractionRepository struct {
	path string
	mu   sync.Mutex
}

// NewInteractionRepository creates a JSONL-backed repository at path,
// creating the parent directory if needed.
func NewInteractionRepository(path string) (InteractionRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create interactions log directory: %w", err)
		}
	}
	return &fileInteractionRepository{path: path}, nil
}

// Append writes the record as one JSON line. The file is opened in append
// mode per write and closed again, so concurrent readers (tail -f, log
// shippers) never hold up the writer.
func (r *fileInteractionRepository) Append(record model.InteractionRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open interactions log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append interaction record: %w", err)
	}
	return nil
}
