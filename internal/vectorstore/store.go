// Package vectorstore defines the vector index abstraction and the
// in-memory index built at ingestion time.
package vectorstore

import (
	"context"
	"errors"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
)

// SchemaVersion is bumped whenever the persisted index layout changes.
const SchemaVersion = 1

// Index is the complete vector index, built wholesale in memory during
// ingestion and persisted as a single artifact. Passages[i] pairs with
// Vectors[i].
type Index struct {
	SchemaVersion int
	Model         string
	Dimensions    int
	Passages      []model.Passage
	Vectors       [][]float32
}

// Add appends a passage and its vector to the index.
func (idx *Index) Add(p model.Passage, vec []float32) error {
	if len(vec) != idx.Dimensions {
		return errors.New("vector dimensions do not match the index")
	}
	idx.Passages = append(idx.Passages, p)
	idx.Vectors = append(idx.Vectors, vec)
	return nil
}

// Len reports the number of entries in the index.
func (idx *Index) Len() int { return len(idx.Passages) }

// Store persists the index and answers nearest-neighbor queries.
// Rebuild replaces any prior index wholesale; incremental updates do not
// exist. Open prepares a store for serving and fails with
// domain.ErrIndexNotFound when nothing has been ingested yet.
type Store interface {
	Rebuild(ctx context.Context, idx *Index) error
	Open(ctx context.Context) error
	Search(ctx context.Context, vector []float32, k int) ([]model.SearchResult, error)
}
