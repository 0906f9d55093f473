package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/ragnotes/notebook-backend/internal/chunker"
	"github.com/ragnotes/notebook-backend/internal/embedding"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// Service chunks, embeds and stores documents off the request path. Indexing
// failures are recorded on the tracker, never returned to callers.
type Service struct {
	gateway  *embedding.Gateway
	store    vectorstore.Store
	tracker  *StatusTracker
	pool     *ants.Pool
	chunking chunker.Options
	business *metrics.BusinessMetrics
}

func NewService(gateway *embedding.Gateway, store vectorstore.Store, tracker *StatusTracker, workers int, chunking chunker.Options, bm *metrics.BusinessMetrics) (*Service, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("create indexing pool: %w", err)
	}
	return &Service{
		gateway:  gateway,
		store:    store,
		tracker:  tracker,
		pool:     pool,
		chunking: chunking,
		business: bm,
	}, nil
}

func (s *Service) Tracker() *StatusTracker { return s.tracker }

// Schedule marks the document pending and hands indexing to the pool. The
// caller's request finishes before indexing does.
func (s *Service) Schedule(docID, text string, meta map[string]any) {
	s.tracker.Set(docID, StatePending, "")

	run := func() { s.runIndexing(docID, text, meta) }
	if err := s.pool.Submit(run); err != nil {
		logger.WithFields(logrus.Fields{"doc_id": docID}).WithError(err).Warn("pool submit failed, running inline goroutine")
		go run()
	}
}

func (s *Service) runIndexing(docID, text string, meta map[string]any) {
	start := time.Now()
	status := "done"
	defer func() {
		if r := recover(); r != nil {
			status = "failed"
			s.tracker.Set(docID, StateFailed, fmt.Sprintf("panic: %v", r))
			logger.WithFields(logrus.Fields{"doc_id": docID, "panic": fmt.Sprintf("%v", r)}).Error("indexing panicked")
		}
		if s.business != nil {
			s.business.IndexTotal.WithLabelValues("indexer", status).Inc()
			s.business.IndexDuration.WithLabelValues("indexer", status).Observe(time.Since(start).Seconds())
		}
	}()

	ctx := context.Background()
	s.tracker.Set(docID, StateIndexing, "")

	chunks := chunker.Split(text, s.chunking)
	if len(chunks) == 0 {
		status = "failed"
		s.tracker.Set(docID, StateFailed, "document produced no indexable text")
		return
	}

	vectors, err := s.gateway.EmbedAll(ctx, chunks)
	if err != nil {
		status = "failed"
		s.tracker.Set(docID, StateFailed, fmt.Sprintf("embedding failed: %v", err))
		logger.WithFields(logrus.Fields{"doc_id": docID}).WithError(err).Error("embedding failed")
		return
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorstore.Record{
			ID:       fmt.Sprintf("%s_%d", docID, i),
			Text:     chunk,
			Metadata: meta,
			Vector:   vectors[i],
		}
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		status = "failed"
		s.tracker.Set(docID, StateFailed, fmt.Sprintf("vector store write failed: %v", err))
		logger.WithFields(logrus.Fields{"doc_id": docID}).WithError(err).Error("vector store write failed")
		return
	}

	s.tracker.Set(docID, StateDone, "")
	logger.WithFields(logrus.Fields{"doc_id": docID, "chunks": len(chunks), "elapsed": time.Since(start).String()}).Info("document indexed")
}

// Close drains the worker pool. Pending tasks are released, not awaited.
func (s *Service) Close() {
	s.pool.Release()
}
