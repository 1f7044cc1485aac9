// Package main runs the Sahay AI ingestion pipeline: it reads the
// PM-KISAN rules PDF, cuts it into passages, embeds them and persists
// the vector index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/jagadeepmamidi/sahay-ai/internal/chunker"
	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/pipeline"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore/elastic"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore/local"
	"github.com/jagadeepmamidi/sahay-ai/pkg/embedding"
	"github.com/jagadeepmamidi/sahay-ai/pkg/iam"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Conf

	log.Init(cfg.Log.Level, "console", "")
	defer log.Sync()

	chk, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		log.Fatal("invalid chunker configuration", err)
	}

	store, err := buildStore(cfg.VectorStore)
	if err != nil {
		log.Fatal("failed to construct vector store", err)
	}

	tokens := iam.NewTokenManager(cfg.WatsonX.APIKey, cfg.WatsonX.IAMURL)
	embeddingClient := embedding.NewClient(cfg.WatsonX, tokens)

	processor := pipeline.NewProcessor(nil, chk, embeddingClient, store)
	summary, err := processor.Run(context.Background(), cfg.Document.Path)
	if err != nil {
		log.Fatal("ingestion failed", err)
	}

	log.Infof("ingestion complete: %d pages, %d passages", summary.Pages, summary.Passages)
	log.Info("the vector index is ready for the chat service")
}

// buildStore selects the vector store backend from configuration.
func buildStore(cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Type {
	case "local", "":
		return local.New(cfg.Local.Dir), nil
	case "elasticsearch":
		return elastic.New(cfg.Elasticsearch)
	default:
		return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
	}
}
