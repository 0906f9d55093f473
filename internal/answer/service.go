// Package answer orchestrates retrieval-augmented answering: embed the
// question, fetch the closest chunks, ground a prompt on them and ask the
// chat model.
package answer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ragnotes/notebook-backend/internal/embedding"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrEmptyQuery = errors.New("query must not be empty")

const (
	DefaultTopK = 5

	cacheTTL = 60 * time.Second

	unavailableAnswer = "The language model service is currently unavailable. Please try again later."
)

type RetrievedChunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Result struct {
	Answer  string           `json:"answer"`
	Sources []string         `json:"sources"`
	Chunks  []RetrievedChunk `json:"chunks"`
	TopK    int              `json:"top_k"`
	// Diagnostic carries the raw model-client failure text when the answer
	// was demoted to the generic unavailable message.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Chatter is the slice of the model client the orchestrator needs.
type Chatter interface {
	Chat(ctx context.Context, prompt, model string) string
}

type Service struct {
	gateway  *embedding.Gateway
	store    vectorstore.Store
	chat     Chatter
	cache    *redis.Client
	business *metrics.BusinessMetrics
}

func NewService(gateway *embedding.Gateway, store vectorstore.Store, chat Chatter, cache *redis.Client, bm *metrics.BusinessMetrics) *Service {
	return &Service{
		gateway:  gateway,
		store:    store,
		chat:     chat,
		cache:    cache,
		business: bm,
	}
}

// Ask answers a question from the indexed corpus. Retrieval failures return
// an error; model failures never do, they surface as a demoted answer with
// the raw text preserved in Diagnostic.
func (s *Service) Ask(ctx context.Context, query string, topK int, model string) (*Result, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if s.business != nil {
			s.business.AskTotal.WithLabelValues("answer", status).Inc()
			s.business.AskDuration.WithLabelValues("answer", status).Observe(time.Since(start).Seconds())
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		status = "invalid"
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	// Cached answers only serve default-model queries so an explicit
	// override always reaches the model.
	cacheKey := ""
	if s.cache != nil && model == "" {
		sum := sha256.Sum256([]byte(query))
		cacheKey = fmt.Sprintf("rag:%x:%d", sum[:8], topK)
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached Result
			if err := sonic.Unmarshal(raw, &cached); err == nil {
				logger.WithFieldsCtx(ctx, logrus.Fields{"key": cacheKey}).Debug("answer cache hit")
				return &cached, nil
			}
		}
	}

	vector, err := s.gateway.EmbedQuery(ctx, query)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Search(ctx, vector, topK)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("search: %w", err)
	}

	result := &Result{
		Sources: make([]string, 0, len(hits)),
		Chunks:  make([]RetrievedChunk, 0, len(hits)),
		TopK:    topK,
	}
	for _, h := range hits {
		result.Sources = append(result.Sources, h.ID)
		result.Chunks = append(result.Chunks, RetrievedChunk{ID: h.ID, Text: h.Text, Metadata: h.Metadata})
	}

	ans := s.chat.Chat(ctx, buildPrompt(query, hits), model)
	if diag, demoted := detectTransportFailure(ans); demoted {
		status = "demoted"
		result.Answer = unavailableAnswer
		result.Diagnostic = diag
		logger.WithFieldsCtx(ctx, logrus.Fields{"diagnostic": diag}).Warn("model answer demoted")
	} else {
		result.Answer = ans
	}

	if cacheKey != "" && result.Diagnostic == "" {
		if raw, err := sonic.Marshal(result); err == nil {
			s.cache.Set(ctx, cacheKey, raw, cacheTTL)
		}
	}

	return result, nil
}

func buildPrompt(query string, hits []vectorstore.Hit) string {
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		blocks = append(blocks, fmt.Sprintf("[%s] %s", h.ID, h.Text))
	}
	grounding := strings.Join(blocks, "\n\n---\n\n")

	var b strings.Builder
	b.WriteString("You are a helpful assistant. Answer the user's QUESTION using ONLY the provided CONTEXT. ")
	b.WriteString("Do NOT use external knowledge or make assumptions beyond the CONTEXT.\n\n")
	b.WriteString("CONTEXT:\n")
	b.WriteString(grounding)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("- If the answer is present in the CONTEXT, answer concisely (1-4 sentences).\n")
	b.WriteString("- For any factual claims, include short source references (the chunk ids) in square brackets, e.g. [docid_0].\n")
	b.WriteString("- When quoting or paraphrasing from CONTEXT, keep quotes short and cite the source id.\n")
	b.WriteString("- If the CONTEXT does not contain enough information to answer, reply exactly: 'I don't know based on the provided context.'\n")
	b.WriteString("- If sources conflict, say so and list the source ids.\n\n")
	b.WriteString("Provide the answer, then a short 'Sources:' line with the ids.")
	return b.String()
}

// detectTransportFailure recognizes the model client's in-band failure
// strings plus common raw transport phrasings.
func detectTransportFailure(ans string) (string, bool) {
	if strings.HasPrefix(ans, "[LLM ") || strings.HasPrefix(ans, "[Local LLM") {
		return ans, true
	}
	lower := strings.ToLower(ans)
	for _, sig := range []string{"connection refused", "connection reset", "no such host"} {
		if strings.Contains(lower, sig) {
			return ans, true
		}
	}
	return "", false
}
