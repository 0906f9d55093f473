// Package embedding turns chunk text into vectors via a remote embedding
// model, batching requests and validating what comes back.
package embedding

import "context"

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
