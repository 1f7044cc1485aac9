package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
)

type staticTokens struct{ token string }

func (s staticTokens) Token(ctx context.Context) (string, error) { return s.token, nil }

type captureWriter struct {
	chunks []string
}

func (w *captureWriter) WriteMessage(messageType int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func testConfig(baseURL string) config.WatsonXConfig {
	return config.WatsonXConfig{
		ProjectID: "test-project",
		BaseURL:   baseURL,
		LLM: config.GenerationConfig{
			Model:             "ibm/granite-13b-chat-v2",
			MaxNewTokens:      512,
			Temperature:       0.7,
			TopP:              0.9,
			RepetitionPenalty: 1.1,
		},
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ml/v1/text/generation") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("version"); got != "2024-05-02" {
			t.Errorf("version = %q", got)
		}
		var req struct {
			ModelID    string `json:"model_id"`
			Input      string `json:"input"`
			ProjectID  string `json:"project_id"`
			Parameters struct {
				DecodingMethod string  `json:"decoding_method"`
				MaxNewTokens   int     `json:"max_new_tokens"`
				Temperature    float64 `json:"temperature"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ModelID != "ibm/granite-13b-chat-v2" || req.ProjectID != "test-project" {
			t.Errorf("unexpected request identity: %+v", req)
		}
		if req.Parameters.DecodingMethod != "sample" || req.Parameters.MaxNewTokens != 512 {
			t.Errorf("unexpected parameters: %+v", req.Parameters)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"generated_text": "  Farmers receive Rs 6000 per year.  "}},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	got, err := c.Generate(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Farmers receive Rs 6000 per year." {
		t.Errorf("answer = %q, want trimmed text", got)
	}
}

func TestGenerateParamOverrides(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Parameters struct {
				MaxNewTokens int     `json:"max_new_tokens"`
				Temperature  float64 `json:"temperature"`
			} `json:"parameters"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Parameters.MaxNewTokens != 64 {
			t.Errorf("max_new_tokens = %d, want the override 64", req.Parameters.MaxNewTokens)
		}
		if req.Parameters.Temperature != 0.7 {
			t.Errorf("temperature = %f, want the configured 0.7", req.Parameters.Temperature)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"generated_text": "ok"}},
		})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	tokens := 64
	if _, err := c.Generate(context.Background(), "prompt", &GenerationParams{MaxNewTokens: &tokens}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"model not found"}]}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	if _, err := c.Generate(context.Background(), "prompt", nil); !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	if _, err := c.Generate(context.Background(), "prompt", nil); !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/generation_stream") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("accept = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"Farmers receive ", "Rs 6000 ", "per year."} {
			payload, _ := json.Marshal(map[string]any{
				"results": []map[string]any{{"generated_text": text}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	writer := &captureWriter{}
	if err := c.GenerateStream(context.Background(), "prompt", nil, writer); err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if got := strings.Join(writer.chunks, ""); got != "Farmers receive Rs 6000 per year." {
		t.Errorf("streamed text = %q", got)
	}
}

func TestGenerateStreamIgnoresMalformedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: ping\n")
		fmt.Fprint(w, "data: {broken json\n\n")
		fmt.Fprint(w, `data: {"results":[{"generated_text":"hello"}]}`+"\n\n")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	writer := &captureWriter{}
	if err := c.GenerateStream(context.Background(), "prompt", nil, writer); err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if len(writer.chunks) != 1 || writer.chunks[0] != "hello" {
		t.Errorf("chunks = %v, want just the valid event", writer.chunks)
	}
}

func TestGenerateStreamEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	err := c.GenerateStream(context.Background(), "prompt", nil, &captureWriter{})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration for an empty stream, got %v", err)
	}
}

func TestGenerateStreamAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), staticTokens{token: "tok"})
	err := c.GenerateStream(context.Background(), "prompt", nil, &captureWriter{})
	if !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}
