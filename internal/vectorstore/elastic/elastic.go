// Package elastic implements the vector store on an Elasticsearch index
// with dense_vector kNN search.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/model"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// document is the per-passage document shape stored in Elasticsearch.
type document struct {
	VectorID     string    `json:"vector_id"`
	DocID        string    `json:"doc_id"`
	Page         int       `json:"page"`
	ChunkIndex   int       `json:"chunk_index"`
	TextContent  string    `json:"text_content"`
	Overlap      int       `json:"overlap"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// Store talks to a single Elasticsearch index.
type Store struct {
	client    *elasticsearch.Client
	indexName string
}

// New connects to Elasticsearch with the given settings.
func New(cfg config.ElasticsearchConfig) (*Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Store{client: client, indexName: cfg.IndexName}, nil
}

// Rebuild drops the index if present, recreates it with a dense_vector
// mapping sized to the incoming index, and writes every entry.
func (s *Store) Rebuild(ctx context.Context, idx *vectorstore.Index) error {
	res, err := s.client.Indices.Delete([]string{s.indexName},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index '%s': %w", s.indexName, err)
	}
	res.Body.Close()

	if err := s.createIndex(ctx, idx.Dimensions); err != nil {
		return err
	}

	for i := range idx.Passages {
		p := idx.Passages[i]
		doc := document{
			VectorID:     fmt.Sprintf("%s_%d", p.DocID, p.Index),
			DocID:        p.DocID,
			Page:         p.Page,
			ChunkIndex:   p.Index,
			TextContent:  p.Text,
			Overlap:      p.Overlap,
			Vector:       idx.Vectors[i],
			ModelVersion: idx.Model,
		}
		if err := s.indexDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to index passage %d: %w", p.Index, err)
		}
	}
	log.Infof("indexed %d passages into '%s'", idx.Len(), s.indexName)
	return nil
}

// Open verifies the index exists.
func (s *Store) Open(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index '%s': %w", s.indexName, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: elasticsearch index '%s' does not exist", domain.ErrIndexNotFound, s.indexName)
	}
	if res.IsError() {
		return fmt.Errorf("unexpected status checking index '%s': %d", s.indexName, res.StatusCode)
	}
	return nil
}

// Search runs a kNN query and returns the nearest passages in order.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]model.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be a positive integer")
	}

	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size": k,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode knn query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s: %s", res.Status(), string(bodyBytes))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source document `json:"_source"`
				Score  float64  `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.SearchResult{
			Passage: model.Passage{
				DocID:   hit.Source.DocID,
				Page:    hit.Source.Page,
				Index:   hit.Source.ChunkIndex,
				Text:    hit.Source.TextContent,
				Overlap: hit.Source.Overlap,
			},
			Score: hit.Score,
		})
	}
	return results, nil
}

func (s *Store) createIndex(ctx context.Context, dims int) error {
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id":     { "type": "keyword" },
				"doc_id":        { "type": "keyword" },
				"page":          { "type": "integer" },
				"chunk_index":   { "type": "integer" },
				"text_content":  { "type": "text" },
				"overlap":       { "type": "integer" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err := s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index '%s': %w", s.indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch refused to create index '%s': %s", s.indexName, res.String())
	}
	return nil
}

func (s *Store) indexDocument(ctx context.Context, doc document) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      s.indexName,
		DocumentID: doc.VectorID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch refused document '%s': %s", doc.VectorID, res.String())
	}
	return nil
}
