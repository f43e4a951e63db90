package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type validateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetCoupon handles GET /api/coupons. Responds with null when the caller
// holds no usable coupon.
func (h *Handlers) GetCoupon(c *gin.Context) {
	coupon, err := h.coupons.GetActiveCoupon(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, coupon)
}

// ValidateCoupon handles POST /api/coupons/validate
func (h *Handlers) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	coupon, err := h.coupons.Validate(c.Request.Context(), currentUserID(c), req.Code)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Coupon is valid",
		"code":               coupon.Code,
		"discountPercentage": coupon.DiscountPercentage,
	})
}
