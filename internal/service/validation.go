package service

import (
	"net/url"
	"strings"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ValidateCreateProductRequest validates a product creation request.
func ValidateCreateProductRequest(req *models.CreateProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name", "name is required")
	}

	if strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("description", "description is required")
	}

	if strings.TrimSpace(req.Category) == "" {
		return apperrors.NewValidationError("category", "category is required")
	}

	if !req.Price.IsPositive() {
		return apperrors.NewValidationError("price", "price must be positive")
	}

	if models.ToMinorUnits(req.Price) <= 0 {
		return apperrors.NewValidationError("price", "price must be at least one cent")
	}

	if req.Image == "" {
		return apperrors.NewValidationError("image", "image is required")
	}

	if u, err := url.Parse(req.Image); err != nil || u.Scheme == "" || u.Host == "" {
		return apperrors.NewValidationError("image", "image must be an absolute URL")
	}

	return nil
}

// ValidateCouponCode validates the shape of a submitted coupon code.
func ValidateCouponCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return apperrors.NewValidationError("code", "coupon code is required")
	}

	if len(code) > 64 {
		return apperrors.NewValidationError("code", "coupon code is too long")
	}

	return nil
}

// ValidateSessionID validates a checkout session id.
func ValidateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("sessionId", "session id is required")
	}

	return nil
}
