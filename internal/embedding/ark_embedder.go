package embedding

import (
	"context"
	"fmt"

	arkembed "github.com/cloudwego/eino-ext/components/embedding/ark"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

// ArkEmbedder calls the Ark embedding API through the eino-ext component.
type ArkEmbedder struct {
	embedder *arkembed.Embedder
	model    string
}

func NewArkEmbedder(ctx context.Context, cfg *config.ArkConfig) (*ArkEmbedder, error) {
	embedder, err := arkembed.NewEmbedder(ctx, &arkembed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Region:  cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark embedder: %w", err)
	}

	logger.WithFields(logrus.Fields{"model": cfg.Model}).Info("ark embedder initialized")
	return &ArkEmbedder{embedder: embedder, model: cfg.Model}, nil
}

func (e *ArkEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d texts with %s: %w", len(texts), e.model, err)
	}
	return vectors, nil
}
