package local

import (
	"context"
	"errors"
	"testing"

	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
)

func testIndex() *vectorstore.Index {
	idx := &vectorstore.Index{
		SchemaVersion: vectorstore.SchemaVersion,
		Model:         "ibm/slate-125m-english-rtrvr",
		Dimensions:    3,
	}
	passages := []model.Passage{
		{DocID: "doc.pdf", Page: 1, Index: 0, Text: "farmers receive rs 6000 per year"},
		{DocID: "doc.pdf", Page: 1, Index: 1, Text: "institutional landholders are excluded"},
		{DocID: "doc.pdf", Page: 2, Index: 2, Text: "state governments verify applications"},
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	for i := range passages {
		if err := idx.Add(passages[i], vectors[i]); err != nil {
			panic(err)
		}
	}
	return idx
}

func TestRebuildOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writer := New(dir)
	if err := writer.Rebuild(ctx, testIndex()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	// A fresh store must serve identical results from the artifact alone.
	reader := New(dir)
	if err := reader.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}

	results, err := reader.Search(ctx, []float32{0.9, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Passage.Text != "farmers receive rs 6000 per year" {
		t.Errorf("unexpected top result: %q", results[0].Passage.Text)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results not in descending score order: %f then %f", results[0].Score, results[1].Score)
	}
}

func TestRebuildReplacesPriorArtifact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)

	if err := s.Rebuild(ctx, testIndex()); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	replacement := &vectorstore.Index{SchemaVersion: vectorstore.SchemaVersion, Model: "m", Dimensions: 3}
	if err := replacement.Add(model.Passage{DocID: "other.pdf", Text: "only entry"}, []float32{0, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Rebuild(ctx, replacement); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	reader := New(dir)
	if err := reader.Open(ctx); err != nil {
		t.Fatalf("Open: %v", err)
	}
	results, err := reader.Search(ctx, []float32{0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Passage.Text != "only entry" {
		t.Errorf("old entries survived the rebuild: %+v", results)
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	s := New(t.TempDir())
	err := s.Open(context.Background())
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchWithoutOpen(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Search(context.Background(), []float32{1, 0, 0}, 1)
	if !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestSearchValidation(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	if err := s.Rebuild(ctx, testIndex()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if _, err := s.Search(ctx, []float32{1, 0, 0}, 0); err == nil {
		t.Error("expected error for k = 0")
	}
	if _, err := s.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected error for a query vector with wrong dimensions")
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	if err := s.Rebuild(ctx, testIndex()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0, 0}, 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected all 3 entries, got %d", len(results))
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := &vectorstore.Index{SchemaVersion: vectorstore.SchemaVersion, Model: "m", Dimensions: 2}
	for i, text := range []string{"first", "second", "third"} {
		if err := idx.Add(model.Passage{Index: i, Text: text}, []float32{1, 0}); err != nil {
			t.Fatal(err)
		}
	}
	s := New(t.TempDir())
	if err := s.Rebuild(ctx, idx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	results, err := s.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Passage.Text != want {
			t.Errorf("result %d is %q, want %q", i, results[i].Passage.Text, want)
		}
	}
}
