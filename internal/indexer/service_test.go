package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ragnotes/notebook-backend/internal/chunker"
	"github.com/ragnotes/notebook-backend/internal/embedding"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	fail error
}

func (f *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(len(texts[i])), 1, 0}
	}
	return out, nil
}

func waitForTerminal(t *testing.T, tr *StatusTracker, docID string) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := tr.Get(docID)
		if s.State == StateDone || s.State == StateFailed {
			return s
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("document %s never reached a terminal state, last: %+v", docID, tr.Get(docID))
	return Status{}
}

func newTestService(t *testing.T, emb embedding.Embedder, store vectorstore.Store) *Service {
	t.Helper()
	svc, err := NewService(embedding.NewGateway(emb, 64), store, NewStatusTracker(), 2, chunker.DefaultOptions(), nil)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestScheduleIndexesDocument(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	svc := newTestService(t, &stubEmbedder{}, store)

	text := "Paris is the capital of France.\n\nBerlin is the capital of Germany.\n\nTokyo is the capital of Japan."
	svc.Schedule("doc1", text, map[string]any{"source": "capitals.txt"})

	got := waitForTerminal(t, svc.Tracker(), "doc1")
	assert.Equal(t, StateDone, got.State)

	infos, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "doc1_0", infos[0].ID)
	assert.Equal(t, "doc1_2", infos[2].ID)
	assert.Equal(t, map[string]any{"source": "capitals.txt"}, infos[0].Metadata)
}

func TestScheduleEmbeddingFailure(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	svc := newTestService(t, &stubEmbedder{fail: errors.New("model offline")}, store)

	svc.Schedule("doc1", "some text to index", nil)

	got := waitForTerminal(t, svc.Tracker(), "doc1")
	assert.Equal(t, StateFailed, got.State)
	assert.Contains(t, got.Reason, "embedding failed")

	infos, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestScheduleEmptyDocumentFails(t *testing.T) {
	svc := newTestService(t, &stubEmbedder{}, vectorstore.NewMemoryStore())

	svc.Schedule("doc1", "   \n\n  ", nil)

	got := waitForTerminal(t, svc.Tracker(), "doc1")
	assert.Equal(t, StateFailed, got.State)
	assert.Contains(t, got.Reason, "no indexable text")
}

type failingStore struct {
	*vectorstore.MemoryStore
}

func (f *failingStore) Upsert(context.Context, []vectorstore.Record) error {
	return errors.New("disk full")
}

func TestScheduleStoreFailure(t *testing.T) {
	svc := newTestService(t, &stubEmbedder{}, &failingStore{vectorstore.NewMemoryStore()})

	svc.Schedule("doc1", "some text to index", nil)

	got := waitForTerminal(t, svc.Tracker(), "doc1")
	assert.Equal(t, StateFailed, got.State)
	assert.Contains(t, got.Reason, "vector store write failed")
}
