package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jagadeepmamidi/sahay-ai/internal/chunker"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore/local"
	"github.com/jagadeepmamidi/sahay-ai/pkg/pdfdoc"
)

// hashEmbedder produces deterministic unit vectors without a network call.
type hashEmbedder struct {
	dim   int
	calls int
	fail  error
}

func (e *hashEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	vec := make([]float32, e.dim)
	vec[len(text)%e.dim] = 1
	return vec, nil
}

func (e *hashEmbedder) Dimensions() int { return e.dim }
func (e *hashEmbedder) Model() string   { return "hash-embedder" }

func pageLoader(pages []pdfdoc.Page) Loader {
	return func(path string) ([]pdfdoc.Page, error) { return pages, nil }
}

func TestRunBuildsAndPersistsIndex(t *testing.T) {
	ctx := context.Background()
	chk, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}

	pages := []pdfdoc.Page{
		{Number: 1, Text: strings.Repeat("eligibility rules for farmer families ", 10)},
		{Number: 2, Text: strings.Repeat("payment of rs 6000 in three installments ", 10)},
	}
	embedder := &hashEmbedder{dim: 4}
	dir := t.TempDir()
	store := local.New(dir)

	p := NewProcessor(pageLoader(pages), chk, embedder, store)
	summary, err := p.Run(ctx, "data/pm_kisan_rules.pdf")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Pages != 2 {
		t.Errorf("summary.Pages = %d, want 2", summary.Pages)
	}
	if summary.Passages == 0 {
		t.Fatal("expected passages to be produced")
	}
	if embedder.calls != summary.Passages {
		t.Errorf("embedded %d passages, summary says %d", embedder.calls, summary.Passages)
	}

	// The persisted artifact must be servable by a fresh store.
	reader := local.New(dir)
	if err := reader.Open(ctx); err != nil {
		t.Fatalf("Open after Run: %v", err)
	}
	query := make([]float32, 4)
	query[0] = 1
	results, err := reader.Search(ctx, query, summary.Passages)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != summary.Passages {
		t.Errorf("index holds %d passages, summary says %d", len(results), summary.Passages)
	}
	for _, r := range results {
		if r.Passage.DocID != "pm_kisan_rules.pdf" {
			t.Errorf("passage doc id = %q, want the file base name", r.Passage.DocID)
			break
		}
	}
}

func TestRunEmptyDocument(t *testing.T) {
	chk, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	p := NewProcessor(pageLoader([]pdfdoc.Page{{Number: 1, Text: ""}}), chk, &hashEmbedder{dim: 4}, local.New(t.TempDir()))

	if _, err := p.Run(context.Background(), "empty.pdf"); err == nil {
		t.Error("expected an error for a document with no extractable text")
	}
}

func TestRunLoaderFailure(t *testing.T) {
	chk, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	loadErr := fmt.Errorf("%w: no such file", domain.ErrDocumentRead)
	failing := func(path string) ([]pdfdoc.Page, error) { return nil, loadErr }
	p := NewProcessor(failing, chk, &hashEmbedder{dim: 4}, local.New(t.TempDir()))

	_, err = p.Run(context.Background(), "missing.pdf")
	if !errors.Is(err, domain.ErrDocumentRead) {
		t.Errorf("expected ErrDocumentRead, got %v", err)
	}
}

func TestRunEmbeddingFailureLeavesNoArtifact(t *testing.T) {
	ctx := context.Background()
	chk, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	dir := t.TempDir()
	embedErr := fmt.Errorf("%w: backend down", domain.ErrEmbedding)
	pages := []pdfdoc.Page{{Number: 1, Text: strings.Repeat("text ", 50)}}
	p := NewProcessor(pageLoader(pages), chk, &hashEmbedder{dim: 4, fail: embedErr}, local.New(dir))

	if _, err := p.Run(ctx, "doc.pdf"); !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}

	// A failed run must not leave a partial index behind.
	reader := local.New(dir)
	if err := reader.Open(ctx); !errors.Is(err, domain.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound after a failed run, got %v", err)
	}
}

func TestRunIndexMetadata(t *testing.T) {
	ctx := context.Background()
	chk, err := chunker.New(100, 20)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}

	var captured *vectorstore.Index
	store := &capturingStore{onRebuild: func(idx *vectorstore.Index) { captured = idx }}
	pages := []pdfdoc.Page{{Number: 1, Text: strings.Repeat("text ", 50)}}
	p := NewProcessor(pageLoader(pages), chk, &hashEmbedder{dim: 4}, store)

	if _, err := p.Run(ctx, "doc.pdf"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if captured == nil {
		t.Fatal("Rebuild was never called")
	}
	if captured.Model != "hash-embedder" {
		t.Errorf("index model = %q, want the embedder's model", captured.Model)
	}
	if captured.Dimensions != 4 {
		t.Errorf("index dimensions = %d, want 4", captured.Dimensions)
	}
	if captured.SchemaVersion != vectorstore.SchemaVersion {
		t.Errorf("index schema version = %d, want %d", captured.SchemaVersion, vectorstore.SchemaVersion)
	}
}

type capturingStore struct {
	onRebuild func(*vectorstore.Index)
}

func (s *capturingStore) Rebuild(ctx context.Context, idx *vectorstore.Index) error {
	s.onRebuild(idx)
	return nil
}

func (s *capturingStore) Open(ctx context.Context) error { return nil }

func (s *capturingStore) Search(ctx context.Context, vector []float32, k int) ([]model.SearchResult, error) {
	return nil, nil
}
