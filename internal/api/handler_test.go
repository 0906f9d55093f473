package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/ragnotes/notebook-backend/internal/answer"
	"github.com/ragnotes/notebook-backend/internal/chunker"
	"github.com/ragnotes/notebook-backend/internal/embedding"
	"github.com/ragnotes/notebook-backend/internal/extract"
	"github.com/ragnotes/notebook-backend/internal/indexer"
	"github.com/ragnotes/notebook-backend/internal/llm"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flatEmbedder struct{}

func (flatEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1, 0}
	}
	return out, nil
}

type fixedChat struct{ reply string }

func (c fixedChat) Chat(context.Context, string, string) string { return c.reply }

type testEnv struct {
	router *gin.Engine
	store  *vectorstore.MemoryStore
	idx    *indexer.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := vectorstore.NewMemoryStore()
	gateway := embedding.NewGateway(flatEmbedder{}, 64)
	idx, err := indexer.NewService(gateway, store, indexer.NewStatusTracker(), 2, chunker.DefaultOptions(), nil)
	require.NoError(t, err)
	t.Cleanup(idx.Close)

	answers := answer.NewService(gateway, store, fixedChat{reply: "grounded answer"}, nil, nil)
	llmClient := llm.NewClient(config.LLMConfig{Backend: "local"})

	storage := config.StorageConfig{
		UploadPath:   t.TempDir(),
		MaxFileSize:  1024,
		AllowedTypes: []string{".txt", ".md"},
	}
	h := NewHandler(storage, chunker.DefaultOptions(), extract.NewTextExtractor(), idx, answers, store, llmClient, nil)

	return &testEnv{router: NewRouter(h, nil, nil, nil), store: store, idx: idx}
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeJSON(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(body.Bytes(), &out))
	return out
}

func awaitStatus(t *testing.T, env *testEnv, docID, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index/status/"+docID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		if decodeJSON(t, w.Body)["status"] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("doc %s never reached status %q", docID, want)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w.Body)["ok"])
}

func TestUploadIndexAndStatus(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "capitals.txt",
		"Paris is the capital of France.\n\nBerlin is the capital of Germany.\n\nTokyo is the capital of Japan.")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeJSON(t, w.Body)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "pending", got["indexing"])
	docID, _ := got["doc_id"].(string)
	require.NotEmpty(t, docID)
	assert.NotContains(t, docID, "-")

	awaitStatus(t, env, docID, "done")

	infos, err := env.store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, fmt.Sprintf("%s_0", docID), infos[0].ID)
	assert.Equal(t, map[string]any{"source_filename": "capitals.txt"}, infos[0].Metadata)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "binary.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Unsupported file type")
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "big.txt", strings.Repeat("x", 2048))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadRejectsEmptyDocument(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "empty.txt", "   \n\n  ")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no text chunks")
}

func TestUploadMissingFileField(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "doc1_0", Text: "Paris is the capital of France.", Vector: []float64{31, 1, 0}},
	}))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ask?q=capital+of+France&top_k=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	got := decodeJSON(t, w.Body)
	assert.Equal(t, "grounded answer", got["answer"])
	assert.Equal(t, []any{"doc1_0"}, got["sources"])
}

func TestAskEmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ask?q=", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndDeleteDocuments(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Upsert(context.Background(), []vectorstore.Record{
		{ID: "doc1_0", Metadata: map[string]any{"source_filename": "a.txt"}, Vector: []float64{1, 0, 0}},
		{ID: "doc1_1", Metadata: map[string]any{"source_filename": "a.txt"}, Vector: []float64{0, 1, 0}},
		{ID: "doc2_0", Metadata: map[string]any{"source_filename": "b.txt"}, Vector: []float64{0, 0, 1}},
	}))

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	docs := decodeJSON(t, w.Body)["documents"].([]any)
	require.Len(t, docs, 2)
	first := docs[0].(map[string]any)
	assert.Equal(t, "doc1", first["doc_id"])
	assert.Equal(t, float64(2), first["count"])

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/doc1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "doc1", decodeJSON(t, w.Body)["deleted"])

	// A second delete reports not found.
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/doc1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIndexStatusUnknown(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index/status/nope", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unknown", decodeJSON(t, w.Body)["status"])
}

func TestListModelsLocalBackend(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/llm/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decodeJSON(t, w.Body)["models"])
}
