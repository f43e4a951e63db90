package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
)

const serviceName = "storefront-service"

var startTime = time.Now()

// Health handles GET /health
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Ready handles GET /ready. Every registered backing store must answer
// within two seconds.
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("Readiness check failed", logging.Fields{
				"check": name,
				"error": err.Error(),
			})
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": serviceName,
		"checks":  results,
	})
}

// Version handles GET /version
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    serviceName,
		"go_version": runtime.Version(),
		"started_at": startTime.Format(time.RFC3339),
	})
}

// Metrics handles GET /metrics (Prometheus format)
func (h *Handlers) Metrics(c *gin.Context) {
	metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
