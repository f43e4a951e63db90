package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// CreateCheckoutSession handles POST /api/payments/create-checkout-session
// and POST /api/checkout/session
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	var req models.CreateCheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Failed to bind checkout request", logging.Fields{"error": err.Error()})
			badRequest(c, err)
			return
		}
	}

	session, err := h.checkout.CreateSession(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// CheckoutSuccess handles POST /api/payments/checkout-success and
// POST /api/checkout/confirm. Repeated calls for the same session return the
// same order.
func (h *Handlers) CheckoutSuccess(c *gin.Context) {
	var req models.ConfirmCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.checkout.Confirm(c.Request.Context(), req.SessionID, currentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment successful, order created, and coupon deactivated if used.",
		"orderId": order.ID,
		"order":   order,
	})
}
