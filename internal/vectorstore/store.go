// Package vectorstore persists embedded chunks and serves similarity
// search over them. Milvus is the production backend; an in-memory store
// covers local development and tests.
package vectorstore

import "context"

// Record is one chunk ready for storage. Vectors stay float64 until the
// storage boundary.
type Record struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float64
}

// Hit is one search result. Distance is cosine distance, lower is closer.
type Hit struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// ChunkInfo is the listing view of a stored chunk, without text or vector.
type ChunkInfo struct {
	ID       string
	Metadata map[string]any
}

type Store interface {
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error
	// Search returns the topK nearest records to the query vector.
	Search(ctx context.Context, vector []float64, topK int) ([]Hit, error)
	// ListAll returns every stored chunk, ordered by ID.
	ListAll(ctx context.Context) ([]ChunkInfo, error)
	// DeleteByDocument removes all chunks whose ID starts with docID + "_"
	// and reports how many were removed.
	DeleteByDocument(ctx context.Context, docID string) (int, error)
}
