package api

import (
	"github.com/gin-gonic/gin"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/ragnotes/notebook-backend/pkg/middleware"
	"github.com/ragnotes/notebook-backend/pkg/ratelimit"
)

// NewRouter wires the middleware chain and routes. Passing a nil limiter or
// nil metrics disables that middleware, which tests use.
func NewRouter(h *Handler, limiter *ratelimit.Limiter, hm *metrics.HTTPMetrics, bm *metrics.BusinessMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if hm != nil {
		r.Use(metrics.MetricsMiddleware("api", hm))
	}
	if limiter != nil {
		r.Use(middleware.RateLimit(limiter, bm, "api"))
	}

	r.POST("/upload", h.Upload)
	r.GET("/ask", h.Ask)
	r.GET("/documents", h.ListDocuments)
	r.DELETE("/documents/:id", h.DeleteDocument)
	r.GET("/index/status/:id", h.IndexStatus)
	r.GET("/llm/models", h.ListModels)
	r.GET("/health", h.Health)
	r.GET("/metrics", metrics.Handler(metrics.DefaultRegistry()))

	return r
}
