// Package embedding provides a client for the watsonx text-embeddings API.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/pkg/iam"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

// apiVersion is the watsonx.ai API version date sent with every request.
const apiVersion = "2024-05-02"

// Client defines the interface for an embedding client.
type Client interface {
	// CreateEmbedding returns the L2-normalized vector for the given text.
	// Identical text and model version yield identical vectors.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the configured vector dimensionality.
	Dimensions() int
	// Model reports the embedding model identifier in use.
	Model() string
}

type watsonxClient struct {
	cfg    config.WatsonXConfig
	tokens iam.TokenSource
	client *http.Client
}

// NewClient creates an embedding client backed by watsonx. The client is
// constructed once and shared by ingestion and query serving.
func NewClient(cfg config.WatsonXConfig, tokens iam.TokenSource) Client {
	return &watsonxClient{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	ModelID   string   `json:"model_id"`
	Inputs    []string `json:"inputs"`
	ProjectID string   `json:"project_id"`
}

type embeddingResponse struct {
	Results []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"results"`
}

// CreateEmbedding calls the watsonx embeddings endpoint for a single text.
func (c *watsonxClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: input text is empty", domain.ErrEmbedding)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}

	reqBody := embeddingRequest{
		ModelID:   c.cfg.Embedding.Model,
		Inputs:    []string{text},
		ProjectID: c.cfg.ProjectID,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/ml/v1/text/embeddings?version=%s", c.cfg.BaseURL, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] embeddings call failed: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] embeddings API returned %s", resp.Status)
		return nil, fmt.Errorf("%w: embeddings api returned status %s", domain.ErrEmbedding, resp.Status)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode embedding response: %v", domain.ErrEmbedding, err)
	}
	if len(embResp.Results) == 0 || len(embResp.Results[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: received empty embedding from api", domain.ErrEmbedding)
	}

	vec := embResp.Results[0].Embedding
	l2normalize(vec)
	log.Debugf("[EmbeddingClient] got vector, dimensions: %d", len(vec))
	return vec, nil
}

func (c *watsonxClient) Dimensions() int {
	return c.cfg.Embedding.Dimensions
}

func (c *watsonxClient) Model() string {
	return c.cfg.Embedding.Model
}

// l2normalize scales the vector to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
