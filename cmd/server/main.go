// Package main launches the Sahay AI web chat service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jagadeepmamidi/sahay-ai/internal/config"
	"github.com/jagadeepmamidi/sahay-ai/internal/domain"
	"github.com/jagadeepmamidi/sahay-ai/internal/handler"
	"github.com/jagadeepmamidi/sahay-ai/internal/middleware"
	"github.com/jagadeepmamidi/sahay-ai/internal/repository"
	"github.com/jagadeepmamidi/sahay-ai/internal/service"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore/elastic"
	"github.com/jagadeepmamidi/sahay-ai/internal/vectorstore/local"
	"github.com/jagadeepmamidi/sahay-ai/pkg/embedding"
	"github.com/jagadeepmamidi/sahay-ai/pkg/iam"
	"github.com/jagadeepmamidi/sahay-ai/pkg/llm"
	"github.com/jagadeepmamidi/sahay-ai/pkg/log"
	"github.com/jagadeepmamidi/sahay-ai/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the variables directly.
	_ = godotenv.Load()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	// Shared, explicitly constructed clients. The token manager is the
	// one lazily-initialized resource: the first call fetches a token,
	// later calls reuse it.
	tokens := iam.NewTokenManager(cfg.WatsonX.APIKey, cfg.WatsonX.IAMURL)
	embeddingClient := embedding.NewClient(cfg.WatsonX, tokens)
	llmClient := llm.NewClient(cfg.WatsonX, tokens)

	store, err := buildStore(cfg.VectorStore)
	if err != nil {
		log.Fatal("failed to construct vector store", err)
	}
	if err := store.Open(context.Background()); err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			log.Fatal("no vector index found; run the ingest command first", err)
		}
		log.Fatal("failed to open vector store", err)
	}
	log.Infof("vector store ready (backend: %s)", cfg.VectorStore.Type)

	interactionRepo, err := repository.NewInteractionRepository(cfg.Interactions.LogPath)
	if err != nil {
		log.Fatal("failed to initialize interactions log", err)
	}
	conversationRepo := repository.NewConversationRepository()

	searchService := service.NewSearchService(embeddingClient, store)
	chatService := service.NewChatService(searchService, llmClient, conversationRepo, interactionRepo, cfg.Retrieval.TopK)
	chatHandler := handler.NewChatHandler(chatService)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		chat := apiV1.Group("/chat")
		{
			chat.POST("", chatHandler.Chat)
			chat.GET("/ws", chatHandler.HandleWS)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("Sahay AI listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("HTTP server shutdown failed", err)
	}
	log.Info("server stopped")
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
