package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
)

const RequestIDHeader = "X-Request-ID"

type contextKey string

// RequestIDKey carries the request id on the request context.
const RequestIDKey contextKey = "request_id"

// RequestID propagates or assigns a request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), RequestIDKey, id))
		c.Next()
	}
}

// Timeout bounds the request context.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

var accessLogger = logging.NewLoggerV2("http")

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logging.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": c.GetString("request_id"),
		}
		if userID := c.GetString(ContextUserID); userID != "" {
			fields["user_id"] = userID
		}
		if c.Writer.Status() >= 500 {
			accessLogger.Error("Request failed", fields)
			return
		}
		accessLogger.Info("Request handled", fields)
	}
}
