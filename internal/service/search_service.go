// Package service contains the application's business logic layer.
package service

import (
	"context"
	"fmt"

	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/pkg/embedding"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// SearchService retrieves the passages most similar to a query.
type SearchService interface {
	Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

type searchService struct {
	embeddingClient embedding.Client
	store           vectorstore.Store
}

// NewSearchService creates a SearchService over the given embedder and store.
func NewSearchService(embeddingClient embedding.Client, store vectorstore.Store) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		store:           store,
	}
}

// Search embeds the query and delegates to the vector store. There is no
// re-ranking, deduplication or filtering on top of the store's answer.
func (s *searchService) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(ctx, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	log.Debugf("[SearchService] query matched %d passages", len(results))
	return results, nil
}
