package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type removeFromCartRequest struct {
	ProductID string `json:"productId"`
}

// GetCart handles GET /api/cart. Items are resolved against the catalog.
func (h *Handlers) GetCart(c *gin.Context) {
	lines, err := h.carts.Materialize(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, lines)
}

// AddToCart handles POST /api/cart
func (h *Handlers) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	items, err := h.carts.AddToCart(c.Request.Context(), currentUserID(c), req.ProductID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// UpdateQuantity handles PUT /api/cart/:id
func (h *Handlers) UpdateQuantity(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	items, err := h.carts.UpdateQuantity(c.Request.Context(), currentUserID(c), c.Param("id"), *req.Quantity)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

// RemoveFromCart handles DELETE /api/cart. Without a productId the whole
// cart is cleared.
func (h *Handlers) RemoveFromCart(c *gin.Context) {
	var req removeFromCartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	items, err := h.carts.RemoveFromCart(c.Request.Context(), currentUserID(c), req.ProductID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
