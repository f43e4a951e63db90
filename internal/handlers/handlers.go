package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"
)

// ReadinessCheck reports whether a backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

// Handlers holds all HTTP handlers for the storefront service.
type Handlers struct {
	catalog  *service.CatalogService
	carts    *service.CartService
	coupons  *service.CouponService
	checkout *service.CheckoutService
	orders   *service.OrderService
	checks   map[string]ReadinessCheck
	config   *config.Config
	logger   *logging.LoggerV2
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	catalog *service.CatalogService,
	carts *service.CartService,
	coupons *service.CouponService,
	checkout *service.CheckoutService,
	orders *service.OrderService,
	checks map[string]ReadinessCheck,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		catalog:  catalog,
		carts:    carts,
		coupons:  coupons,
		checkout: checkout,
		orders:   orders,
		checks:   checks,
		config:   cfg,
		logger:   logging.NewLoggerV2("handlers"),
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserID)
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(middleware.ContextRole) == string(models.RoleAdmin)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "invalid request body",
		"kind":  apperrors.KindValidation,
		"details": gin.H{
			"reason": err.Error(),
		},
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation,
		apperrors.KindInvalidLineItem,
		apperrors.KindEmptyCart,
		apperrors.KindInvalidCoupon,
		apperrors.KindCouponNotFound,
		apperrors.KindCouponExpired,
		apperrors.KindPaymentNotConfirmed,
		apperrors.KindDuplicateSession:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindRateLimited:
		return http.StatusTooManyRequests
	case apperrors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		h.logger.Error("Request failed", logging.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"kind":  apperrors.KindInternal,
		})
		return
	}

	status := statusFor(appErr.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Upstream failure", logging.Fields{
			"path":  c.FullPath(),
			"kind":  string(appErr.Kind),
			"error": err.Error(),
		})
	}

	body := gin.H{
		"error": appErr.Message,
		"kind":  appErr.Kind,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.JSON(status, body)
}
