package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ragnotes/notebook-backend/internal/answer"
	"github.com/ragnotes/notebook-backend/internal/api"
	"github.com/ragnotes/notebook-backend/internal/chunker"
	"github.com/ragnotes/notebook-backend/internal/embedding"
	"github.com/ragnotes/notebook-backend/internal/extract"
	"github.com/ragnotes/notebook-backend/internal/indexer"
	"github.com/ragnotes/notebook-backend/internal/llm"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/ragnotes/notebook-backend/pkg/ratelimit"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init()
	logger.WithFields(logrus.Fields{"service": "notebook", "environment": cfg.Server.Mode}).Info("starting server")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	embedder, err := embedding.NewArkEmbedder(ctx, &cfg.Ark)
	if err != nil {
		logger.WithError(err).Error("failed to initialize embedder")
		os.Exit(1)
	}
	gateway := embedding.NewGateway(embedder, cfg.Indexing.BatchSize)

	store := buildStore(ctx, cfg)

	reg := metrics.DefaultRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg, "notebook", "api")
	businessMetrics := metrics.NewBusinessMetrics(reg, "notebook")

	chunking := chunker.Options{
		MaxChunkChars: cfg.Chunking.MaxChunkChars,
		OverlapChars:  cfg.Chunking.OverlapChars,
	}
	idx, err := indexer.NewService(gateway, store, indexer.NewStatusTracker(), cfg.Indexing.Workers, chunking, businessMetrics)
	if err != nil {
		logger.WithError(err).Error("failed to initialize indexer")
		os.Exit(1)
	}
	defer idx.Close()

	llmClient := llm.NewClient(cfg.LLM)
	answers := answer.NewService(gateway, store, llmClient, rdb, businessMetrics)

	limiter := ratelimit.New(ctx, rdb, ratelimit.Options{
		Window: cfg.RateLimit.Window,
		Limits: map[string]int{
			"upload": cfg.RateLimit.UploadLimit,
			"ask":    cfg.RateLimit.AskLimit,
		},
	})

	handler := api.NewHandler(cfg.Storage, chunking, extract.NewTextExtractor(), idx, answers, store, llmClient, businessMetrics)

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(handler, limiter, httpMetrics, businessMetrics)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Server.Port}).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("failed to start server")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Give outstanding requests a 30-second deadline to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	logger.Info("server exited")
}

// buildStore prefers Milvus and falls back to the in-process store when it
// is disabled or unreachable, so local development needs no vector database.
func buildStore(ctx context.Context, cfg *config.Config) vectorstore.Store {
	if !cfg.Milvus.Enabled {
		logger.Info("milvus disabled, using in-memory vector store")
		return vectorstore.NewMemoryStore()
	}

	cli, err := milvus.NewClient(ctx, milvus.Config{
		Address:  cfg.Milvus.Addr,
		Username: cfg.Milvus.Username,
		Password: cfg.Milvus.Password,
	})
	if err != nil {
		logger.WithError(err).Warn("milvus unreachable, falling back to in-memory vector store")
		return vectorstore.NewMemoryStore()
	}

	store, err := vectorstore.NewMilvusStore(ctx, cli, &cfg.Milvus)
	if err != nil {
		logger.WithError(err).Warn("milvus collection setup failed, falling back to in-memory vector store")
		return vectorstore.NewMemoryStore()
	}

	logger.WithFields(logrus.Fields{"collection": cfg.Milvus.Collection, "dim": cfg.Milvus.VectorDim}).Info("milvus vector store ready")
	return store
}
