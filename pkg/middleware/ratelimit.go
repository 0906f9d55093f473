package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ragnotes/notebook-backend/pkg/logger"
	"github.com/ragnotes/notebook-backend/pkg/metrics"
	"github.com/ragnotes/notebook-backend/pkg/ratelimit"
	"github.com/sirupsen/logrus"
)

const (
	ClassUpload = "upload"
	ClassAsk    = "ask"
)

// classify maps a request path to its rate-limit endpoint class. Paths
// without a class are not limited.
func classify(path string) string {
	switch {
	case path == "/upload":
		return ClassUpload
	case path == "/ask" || strings.HasPrefix(path, "/ask/"):
		return ClassAsk
	default:
		return ""
	}
}

// RateLimit rejects requests exceeding the per-client, per-endpoint-class
// fixed-window limits before any handler work begins.
func RateLimit(limiter *ratelimit.Limiter, bm *metrics.BusinessMetrics, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		class := classify(c.Request.URL.Path)
		if class == "" {
			c.Next()
			return
		}

		client := c.ClientIP()
		if client == "" {
			client = "unknown"
		}

		if !limiter.Allow(c.Request.Context(), client, class) {
			if bm != nil {
				bm.RateLimitedTotal.WithLabelValues(service, class).Inc()
			}
			logger.WithFieldsCtx(c.Request.Context(), logrus.Fields{"client": client, "class": class}).Warn("rate limit exceeded")
			msg := "Too many requests, slow down"
			if class == ClassUpload {
				msg = "Too many upload requests, try later"
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
			return
		}

		c.Next()
	}
}
