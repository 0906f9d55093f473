package embedding

import (
	"context"
	"fmt"

	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/sirupsen/logrus"
)

const DefaultBatchSize = 64

// Gateway batches embedding requests and rejects malformed results before
// they reach the vector store.
type Gateway struct {
	embedder  Embedder
	batchSize int
}

func NewGateway(embedder Embedder, batchSize int) *Gateway {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Gateway{embedder: embedder, batchSize: batchSize}
}

// EmbedAll embeds texts in batches of at most batchSize and returns one
// vector per text, in order. A count mismatch or an empty vector from the
// model fails the whole call.
func (g *Gateway) EmbedAll(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		got, err := g.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch starting at %d: %w", start, err)
		}
		if len(got) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(got))
		}
		for i, v := range got {
			if len(v) == 0 {
				return nil, fmt.Errorf("empty vector for text %d", start+i)
			}
		}
		vectors = append(vectors, got...)
	}

	logger.WithFields(logrus.Fields{"texts": len(texts), "batch_size": g.batchSize}).Debug("embedded texts")
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (g *Gateway) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := g.EmbedAll(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
