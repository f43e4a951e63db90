package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ListOrders handles GET /api/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	orders, err := h.orders.GetUserOrders(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrder handles GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetAnalytics handles GET /api/analytics
func (h *Handlers) GetAnalytics(c *gin.Context) {
	analytics, err := h.orders.Analytics(c.Request.Context(), time.Now())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, analytics)
}
