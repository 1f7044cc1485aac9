// Package local implements a disk-persisted brute-force vector store.
package local

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
)

const artifactName = "index.gob"

// Store keeps the whole index in memory and persists it as a single gob
// artifact inside a directory. Vectors are L2-normalized by the embedder,
// so cosine similarity reduces to a dot product.
type Store struct {
	dir string

	mu  sync.RWMutex
	idx *vectorstore.Index
}

// New creates a local store rooted at dir. Nothing is read until Open.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Rebuild persists the index atomically, replacing any prior artifact.
// The index is written to a temporary file first so a crash never leaves
// a half-written artifact behind.
func (s *Store) Rebuild(ctx context.Context, idx *vectorstore.Index) error {
	if idx.SchemaVersion == 0 {
		idx.SchemaVersion = vectorstore.SchemaVersion
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, artifactName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(idx); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, artifactName)); err != nil {
		return fmt.Errorf("failed to replace index artifact: %w", err)
	}

	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	return nil
}

// Open loads the persisted artifact into memory.
func (s *Store) Open(ctx context.Context) error {
	path := filepath.Join(s.dir, artifactName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: no index artifact at %s", domain.ErrIndexNotFound, path)
		}
		return fmt.Errorf("failed to open index artifact: %w", err)
	}
	defer f.Close()

	var idx vectorstore.Index
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return fmt.Errorf("failed to decode index artifact: %w", err)
	}
	if idx.SchemaVersion != vectorstore.SchemaVersion {
		return fmt.Errorf("index artifact has schema version %d, want %d; re-run ingestion",
			idx.SchemaVersion, vectorstore.SchemaVersion)
	}
	if len(idx.Passages) != len(idx.Vectors) {
		return errors.New("index artifact is inconsistent: passage/vector count mismatch")
	}

	s.mu.Lock()
	s.idx = &idx
	s.mu.Unlock()
	return nil
}

// Search returns the k nearest passages by cosine similarity, nearest
// first. Ties keep insertion order. Fewer than k entries returns all.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be a positive integer")
	}

	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx == nil {
		return nil, fmt.Errorf("%w: store is not opened", domain.ErrIndexNotFound)
	}
	if len(vector) != idx.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index has %d", len(vector), idx.Dimensions)
	}

	results := make([]model.SearchResult, 0, idx.Len())
	for i := range idx.Vectors {
		results = append(results, model.SearchResult{
			Passage: idx.Passages[i],
			Score:   float64(dot(idx.Vectors[i], vector)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
