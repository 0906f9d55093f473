package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a mutex-guarded map with brute-force cosine search. The
// vector dimension is adopted from the first upsert.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	dim     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if s.dim == 0 {
			s.dim = len(r.Vector)
		}
		if len(r.Vector) != s.dim {
			return fmt.Errorf("vector dim mismatch for %s: got %d, store has %d", r.ID, len(r.Vector), s.dim)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float64, topK int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 || topK <= 0 {
		return nil, nil
	}
	if s.dim != 0 && len(vector) != s.dim {
		return nil, fmt.Errorf("query vector dim mismatch: got %d, store has %d", len(vector), s.dim)
	}

	hits := make([]Hit, 0, len(s.records))
	for _, r := range s.records {
		hits = append(hits, Hit{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: 1 - cosine(vector, r.Vector),
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]ChunkInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]ChunkInfo, 0, len(s.records))
	for id, r := range s.records {
		infos = append(infos, ChunkInfo{ID: id, Metadata: r.Metadata})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, docID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := docID + "_"
	removed := 0
	for id := range s.records {
		if strings.HasPrefix(id, prefix) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
