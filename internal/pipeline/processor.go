// Package pipeline implements the document ingestion flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/jagadeepmamidi/sahay-ai/internal/chunker"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/pkg/embedding"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
	"github.com/jagadeepmamidi/sahay-ai/pkg/pdfdoc"
)

// Loader turns a PDF path into page-level text.
type Loader func(path string) ([]pdfdoc.Page, error)

// Summary reports what an ingestion run produced.
type Summary struct {
	Pages    int
	Passages int
}

// Processor wires the ingestion dependencies together.
type Processor struct {
	loader          Loader
	chunker         *chunker.Chunker
	embeddingClient embedding.Client
	store           vectorstore.Store
}

// NewProcessor creates a Processor. loader defaults to pdfdoc.Load when nil.
func NewProcessor(loader Loader, chk *chunker.Chunker, embeddingClient embedding.Client, store vectorstore.Store) *Processor {
	if loader == nil {
		loader = pdfdoc.Load
	}
	return &Processor{
		loader:          loader,
		chunker:         chk,
		embeddingClient: embeddingClient,
		store:           store,
	}
}

// Run executes the full ingestion: load, chunk, embed, persist. The index
// is built entirely in memory and written once at the end, so a failed run
// never leaves a partial index behind.
func (p *Processor) Run(ctx context.Context, pdfPath string) (*Summary, error) {
	log.Infof("[Processor] loading document: %s", pdfPath)
	pages, err := p.loader(pdfPath)
	if err != nil {
		return nil, err
	}
	log.Infof("[Processor] loaded %d pages", len(pages))

	docID := filepath.Base(pdfPath)
	passages := p.chunker.Split(docID, pages)
	if len(passages) == 0 {
		return nil, errors.New("document produced no passages")
	}
	log.Infof("[Processor] cut %d passages", len(passages))
	if len(passages) > 0 {
		log.Debugf("[Processor] first passage preview: %s", preview(passages[0].Text, 200))
	}

	idx := &vectorstore.Index{
		SchemaVersion: vectorstore.SchemaVersion,
		Model:         p.embeddingClient.Model(),
		Dimensions:    p.embeddingClient.Dimensions(),
	}
	for i, passage := range passages {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, passage.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed passage %d: %w", passage.Index, err)
		}
		if err := idx.Add(passage, vector); err != nil {
			return nil, fmt.Errorf("failed to add passage %d to index: %w", passage.Index, err)
		}
		log.Debugf("[Processor] embedded passage %d/%d", i+1, len(passages))
	}

	log.Info("[Processor] persisting index")
	if err := p.store.Rebuild(ctx, idx); err != nil {
		return nil, fmt.Errorf("failed to persist index: %w", err)
	}

	return &Summary{Pages: len(pages), Passages: len(passages)}, nil
}

func preview(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "..."
}
