// Package llm provides a client for the watsonx text-generation API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/pkg/iam"
)

const apiVersion = "2024-05-02"

// MessageWriter defines an interface for writing streamed chunks.
// Both a websocket.Conn and a capturing interceptor satisfy it.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// GenerationParams overrides the configured generation behavior.
// Nil fields fall back to the configured values.
type GenerationParams struct {
	MaxNewTokens      *int
	Temperature       *float64
	TopP              *float64
	RepetitionPenalty *float64
}

// Client defines the interface for a text-generation client.
type Client interface {
	// Generate sends the prompt and returns the full generated text.
	Generate(ctx context.Context, prompt string, gen *GenerationParams) (string, error)
	// GenerateStream sends the prompt and writes generated chunks to the
	// writer as they arrive.
	GenerateStream(ctx context.Context, prompt string, gen *GenerationParams, writer MessageWriter) error
}

type watsonxClient struct {
	cfg    config.WatsonXConfig
	tokens iam.TokenSource
	client *http.Client
}

// NewClient creates a text-generation client backed by watsonx.
func NewClient(cfg config.WatsonXConfig, tokens iam.TokenSource) Client {
	return &watsonxClient{
		cfg:    cfg,
		tokens: tokens,
		client: &http.Client{},
	}
}

type generationParameters struct {
	DecodingMethod    string  `json:"decoding_method"`
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

type generationRequest struct {
	ModelID    string               `json:"model_id"`
	Input      string               `json:"input"`
	Parameters generationParameters `json:"parameters"`
	ProjectID  string               `json:"project_id"`
}

type generationResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
	} `json:"results"`
}

func (c *watsonxClient) buildRequest(prompt string, gen *GenerationParams) generationRequest {
	params := generationParameters{
		DecodingMethod:    "sample",
		MaxNewTokens:      c.cfg.LLM.MaxNewTokens,
		Temperature:       c.cfg.LLM.Temperature,
		TopP:              c.cfg.LLM.TopP,
		RepetitionPenalty: c.cfg.LLM.RepetitionPenalty,
	}
	if gen != nil {
		if gen.MaxNewTokens != nil {
			params.MaxNewTokens = *gen.MaxNewTokens
		}
		if gen.Temperature != nil {
			params.Temperature = *gen.Temperature
		}
		if gen.TopP != nil {
			params.TopP = *gen.TopP
		}
		if gen.RepetitionPenalty != nil {
			params.RepetitionPenalty = *gen.RepetitionPenalty
		}
	}
	return generationRequest{
		ModelID:    c.cfg.LLM.Model,
		Input:      prompt,
		Parameters: params,
		ProjectID:  c.cfg.ProjectID,
	}
}

func (c *watsonxClient) post(ctx context.Context, path string, body any, stream bool) (*http.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s%s?version=%s", c.cfg.BaseURL, path, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: generation api returned status %s, body: %s",
			domain.ErrGeneration, resp.Status, string(bodyBytes))
	}
	return resp, nil
}

// Generate calls the blocking text-generation endpoint.
func (c *watsonxClient) Generate(ctx context.Context, prompt string, gen *GenerationParams) (string, error) {
	resp, err := c.post(ctx, "/ml/v1/text/generation", c.buildRequest(prompt, gen), false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: failed to decode generation response: %v", domain.ErrGeneration, err)
	}
	if len(genResp.Results) == 0 {
		return "", fmt.Errorf("%w: generation api returned no results", domain.ErrGeneration)
	}
	text := strings.TrimSpace(genResp.Results[0].GeneratedText)
	if text == "" {
		return "", fmt.Errorf("%w: generation api returned an empty response", domain.ErrGeneration)
	}
	return text, nil
}

// GenerateStream calls the streaming endpoint and forwards each generated
// chunk to the writer as a text message.
func (c *watsonxClient) GenerateStream(ctx context.Context, prompt string, gen *GenerationParams, writer MessageWriter) error {
	resp, err := c.post(ctx, "/ml/v1/text/generation_stream", c.buildRequest(prompt, gen), true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	wrote := false
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%w: failed to read from stream: %v", domain.ErrGeneration, err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk generationResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Results) == 0 || chunk.Results[0].GeneratedText == "" {
			continue
		}
		if err := writer.WriteMessage(websocket.TextMessage, []byte(chunk.Results[0].GeneratedText)); err != nil {
			return fmt.Errorf("failed to write chunk to writer: %w", err)
		}
		wrote = true
	}

	if !wrote {
		return fmt.Errorf("%w: generation api streamed an empty response", domain.ErrGeneration)
	}
	return nil
}
