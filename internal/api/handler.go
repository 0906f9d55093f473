// Package api exposes the HTTP surface: document upload, retrieval-augmented
// asking, document management and indexing status.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ragnotes/notebook-backend/internal/answer"
	"github.com/ragnotes/notebook-backend/internal/chunker"
	"github.com/ragnotes/notebook-backend/internal/extract"
	"github.com/ragnotes/notebook-backend/internal/indexer"
	"github.com/ragnotes/notebook-backend/internal/llm"
	"github.com/ragnotes/notebook-backend/internal/vectorstore"
	"github.com/ragnotes/notebook-backend/pkg/config"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	storage   config.StorageConfig
	chunking  chunker.Options
	extractor extract.Extractor
	indexer   *indexer.Service
	answers   *answer.Service
	store     vectorstore.Store
	llm       *llm.Client
	business  *metrics.BusinessMetrics
}

func NewHandler(storage config.StorageConfig, chunking chunker.Options, extractor extract.Extractor, idx *indexer.Service, answers *answer.Service, store vectorstore.Store, llmClient *llm.Client, bm *metrics.BusinessMetrics) *Handler {
	return &Handler{
		storage:   storage,
		chunking:  chunking,
		extractor: extractor,
		indexer:   idx,
		answers:   answers,
		store:     store,
		llm:       llmClient,
		business:  bm,
	}
}

// Upload accepts a multipart document, validates it, extracts its text and
// schedules background indexing. The response returns before indexing runs.
func (h *Handler) Upload(c *gin.Context) {
	start := time.Now()
	status := "ok"
	defer func() {
		if h.business != nil {
			h.business.UploadTotal.WithLabelValues("api", status).Inc()
			h.business.UploadDuration.WithLabelValues("api", status).Observe(time.Since(start).Seconds())
		}
	}()

	file, err := c.FormFile("file")
	if err != nil {
		status = "invalid"
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}

	origName := filepath.Base(file.Filename)
	ext := strings.ToLower(filepath.Ext(origName))
	if !h.extensionAllowed(ext) {
		status = "invalid"
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported file type: %s", ext)})
		return
	}

	if h.storage.MaxFileSize > 0 && file.Size > h.storage.MaxFileSize {
		status = "invalid"
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Uploaded file exceeds maximum allowed size of %d bytes", h.storage.MaxFileSize)})
		return
	}

	if err := os.MkdirAll(h.storage.UploadPath, 0o755); err != nil {
		status = "error"
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare upload directory"})
		return
	}

	// UUID prefix avoids collisions; the cap keeps filenames filesystem-safe.
	saved := fmt.Sprintf("%s_%s", strings.ReplaceAll(uuid.New().String(), "-", ""), origName)
	if len(saved) > 240 {
		saved = saved[:240]
	}
	path := filepath.Join(h.storage.UploadPath, saved)

	if err := c.SaveUploadedFile(file, path); err != nil {
		status = "error"
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save upload"})
		return
	}

	opts := extract.Options{
		OCREnabled:  parseBoolForm(c, "enable_ocr"),
		OCRMaxPages: parseIntForm(c, "ocr_max_pages"),
	}
	res, err := h.extractor.Extract(path, opts)
	if err != nil {
		status = "invalid"
		os.Remove(path)
		if errors.Is(err, extract.ErrUnsupportedType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported file type: %s", ext)})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("extraction failed: %v", err)})
		}
		return
	}

	// Pre-validate before scheduling: an empty document fails here, not in
	// the background job.
	if len(chunker.Split(res.Text, h.chunking)) == 0 {
		status = "invalid"
		os.Remove(path)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Indexing error: no text chunks generated for indexing (empty document or extraction failure)"})
		return
	}

	docID := strings.ReplaceAll(uuid.New().String(), "-", "")
	h.indexer.Schedule(docID, res.Text, map[string]any{"source_filename": file.Filename})

	logger.WithFieldsCtx(c.Request.Context(), logrus.Fields{"doc_id": docID, "filename": origName, "size": file.Size}).Info("upload queued")
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"doc_id":        docID,
		"ocr_used":      res.OCRUsed,
		"page_count":    res.PageCount,
		"ocr_truncated": res.OCRTruncated,
		"indexing":      "pending",
	})
}

// Ask answers a question grounded on the indexed documents.
func (h *Handler) Ask(c *gin.Context) {
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "5"))

	res, err := h.answers.Ask(c.Request.Context(), c.Query("q"), topK, c.Query("model"))
	if err != nil {
		if errors.Is(err, answer.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q must not be empty"})
			return
		}
		logger.WithFieldsCtx(c.Request.Context(), nil).WithError(err).Error("ask failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Index query error: %v", err)})
		return
	}

	c.JSON(http.StatusOK, res)
}

type documentSummary struct {
	DocID          string         `json:"doc_id"`
	Count          int            `json:"count"`
	SampleMetadata map[string]any `json:"sample_metadata"`
}

// ListDocuments aggregates stored chunks by their document ID prefix.
func (h *Handler) ListDocuments(c *gin.Context) {
	infos, err := h.store.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to list documents: %v", err)})
		return
	}

	byDoc := make(map[string]*documentSummary)
	var order []string
	for _, info := range infos {
		docID := info.ID
		if i := strings.Index(info.ID, "_"); i > 0 {
			docID = info.ID[:i]
		}
		s, ok := byDoc[docID]
		if !ok {
			s = &documentSummary{DocID: docID, SampleMetadata: info.Metadata}
			byDoc[docID] = s
			order = append(order, docID)
		}
		s.Count++
	}

	docs := make([]documentSummary, 0, len(order))
	for _, id := range order {
		docs = append(docs, *byDoc[id])
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// DeleteDocument removes every chunk of a document. Deleting an unknown
// document is a 404, not a server error.
func (h *Handler) DeleteDocument(c *gin.Context) {
	docID := c.Param("id")

	removed, err := h.store.DeleteByDocument(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete document: %v", err)})
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	logger.WithFieldsCtx(c.Request.Context(), logrus.Fields{"doc_id": docID, "chunks": removed}).Info("document deleted")
	c.JSON(http.StatusOK, gin.H{"deleted": docID})
}

// IndexStatus reports background indexing progress for one document.
func (h *Handler) IndexStatus(c *gin.Context) {
	docID := c.Param("id")
	st := h.indexer.Tracker().Get(docID)

	status := string(st.State)
	if st.State == indexer.StateFailed && st.Reason != "" {
		status = "failed: " + st.Reason
	}
	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "status": status})
}

// ListModels reports the chat models the backend offers.
func (h *Handler) ListModels(c *gin.Context) {
	models := h.llm.ListModels(c.Request.Context())
	if models == nil {
		models = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) extensionAllowed(ext string) bool {
	for _, allowed := range h.storage.AllowedTypes {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func parseBoolForm(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.PostForm(key))
	return err == nil && v
}

func parseIntForm(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.PostForm(key))
	if err != nil {
		return 0
	}
	return v
}
