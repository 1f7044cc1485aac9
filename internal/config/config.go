// Package config loads and validates the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
)

// Conf is the global configuration, populated by Init.
var Conf Config

// Config mirrors the structure of configs/config.yaml.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Document     DocumentConfig     `mapstructure:"document"`
	Chunker      ChunkerConfig      `mapstructure:"chunker"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	VectorStore  VectorStoreConfig  `mapstructure:"vector_store"`
	WatsonX      WatsonXConfig      `mapstructure:"watsonx"`
	Interactions InteractionsConfig `mapstructure:"interactions"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DocumentConfig points at the source PDF.
type DocumentConfig struct {
	Path string `mapstructure:"path"`
}

// ChunkerConfig controls how page text is cut into passages.
type ChunkerConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// RetrievalConfig controls query-time retrieval.
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Type          string              `mapstructure:"type"` // "local" or "elasticsearch"
	Local         LocalStoreConfig    `mapstructure:"local"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// LocalStoreConfig configures the disk-persisted index.
type LocalStoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// ElasticsearchConfig configures the Elasticsearch backend.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// WatsonXConfig holds credentials and model settings for IBM watsonx.
// APIKey and ProjectID are bound to the WATSONX_API_KEY and
// WATSONX_PROJECT_ID environment variables and never read from the file.
type WatsonXConfig struct {
	APIKey    string           `mapstructure:"api_key"`
	ProjectID string           `mapstructure:"project_id"`
	BaseURL   string           `mapstructure:"base_url"`
	IAMURL    string           `mapstructure:"iam_url"`
	Embedding EmbeddingConfig  `mapstructure:"embedding"`
	LLM       GenerationConfig `mapstructure:"llm"`
}

// EmbeddingConfig holds the embedding model settings.
type EmbeddingConfig struct {
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// GenerationConfig holds the text generation model settings.
type GenerationConfig struct {
	Model             string  `mapstructure:"model"`
	MaxNewTokens      int     `mapstructure:"max_new_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	TopP              float64 `mapstructure:"top_p"`
	RepetitionPenalty float64 `mapstructure:"repetition_penalty"`
}

// InteractionsConfig points at the append-only interactions log.
type InteractionsConfig struct {
	LogPath string `mapstructure:"log_path"`
}

// Init reads the YAML file at configPath, overlays the environment-bound
// secrets and validates that both credentials are present. It must run
// before any network call is attempted.
func Init(configPath string) error {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.BindEnv("watsonx.api_key", "WATSONX_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind WATSONX_API_KEY: %w", err)
	}
	if err := viper.BindEnv("watsonx.project_id", "WATSONX_PROJECT_ID"); err != nil {
		return fmt.Errorf("failed to bind WATSONX_PROJECT_ID: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := viper.Unmarshal(&Conf); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&Conf)

	if Conf.WatsonX.APIKey == "" {
		return fmt.Errorf("%w: WATSONX_API_KEY is not set", domain.ErrMissingCredentials)
	}
	if Conf.WatsonX.ProjectID == "" {
		return fmt.Errorf("%w: WATSONX_PROJECT_ID is not set", domain.ErrMissingCredentials)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Document.Path == "" {
		cfg.Document.Path = "data/pm_kisan_rules.pdf"
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 150
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "local"
	}
	if cfg.VectorStore.Local.Dir == "" {
		cfg.VectorStore.Local.Dir = "data/vector_db"
	}
	if cfg.VectorStore.Elasticsearch.IndexName == "" {
		cfg.VectorStore.Elasticsearch.IndexName = "sahay_passages"
	}
	if cfg.WatsonX.BaseURL == "" {
		cfg.WatsonX.BaseURL = "https://us-south.ml.cloud.ibm.com"
	}
	if cfg.WatsonX.IAMURL == "" {
		cfg.WatsonX.IAMURL = "https://iam.cloud.ibm.com/identity/token"
	}
	if cfg.WatsonX.Embedding.Model == "" {
		cfg.WatsonX.Embedding.Model = "ibm/slate-125m-english-rtrvr"
	}
	if cfg.WatsonX.Embedding.Dimensions == 0 {
		cfg.WatsonX.Embedding.Dimensions = 768
	}
	if cfg.WatsonX.LLM.Model == "" {
		cfg.WatsonX.LLM.Model = "ibm/granite-13b-chat-v2"
	}
	if cfg.WatsonX.LLM.MaxNewTokens == 0 {
		cfg.WatsonX.LLM.MaxNewTokens = 512
	}
	if cfg.WatsonX.LLM.Temperature == 0 {
		cfg.WatsonX.LLM.Temperature = 0.7
	}
	if cfg.WatsonX.LLM.TopP == 0 {
		cfg.WatsonX.LLM.TopP = 0.9
	}
	if cfg.WatsonX.LLM.RepetitionPenalty == 0 {
		cfg.WatsonX.LLM.RepetitionPenalty = 1.1
	}
	if cfg.Interactions.LogPath == "" {
		cfg.Interactions.LogPath = "logs/interactions.jsonl"
	}
}
