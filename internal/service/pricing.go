package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// CheckoutTotal is the pricing breakdown of a checkout, in minor units.
type CheckoutTotal struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

const (
	// MaxLineQuantity is the largest quantity a single checkout line accepts.
	MaxLineQuantity = 999999
	// MaxCheckoutSubtotal caps a session subtotal in minor units. It matches
	// the largest single charge the payment provider accepts.
	MaxCheckoutSubtotal int64 = 99999999
)

// lineTotal returns unit price times quantity in minor units. ok is false
// when the product does not fit in an int64.
func lineTotal(item models.LineItem) (total int64, ok bool) {
	cents := models.ToMinorUnits(item.UnitPrice)
	qty := int64(item.Quantity)
	if cents <= 0 || qty <= 0 {
		return 0, false
	}
	if cents > math.MaxInt64/qty {
		return 0, false
	}
	return cents * qty, true
}

// checkSubtotal verifies every line is within bounds and that the running
// subtotal stays positive and under MaxCheckoutSubtotal.
func checkSubtotal(items []models.LineItem) error {
	var subtotal int64
	for _, item := range items {
		if item.Quantity > MaxLineQuantity {
			return apperrors.NewInvalidLineItem(item.ProductID, "quantity exceeds the maximum per line")
		}
		line, ok := lineTotal(item)
		if !ok {
			return apperrors.NewInvalidLineItem(item.ProductID, "line total out of range")
		}
		if line > MaxCheckoutSubtotal-subtotal {
			return apperrors.NewInvalidLineItem(item.ProductID, "checkout total exceeds the maximum charge")
		}
		subtotal += line
	}
	if subtotal <= 0 {
		return apperrors.New(apperrors.KindInvalidLineItem, "checkout total must be positive")
	}
	return nil
}

// CalculateSubtotal sums unit price times quantity over items. Callers
// bound the items with checkSubtotal first.
func CalculateSubtotal(items []models.LineItem) int64 {
	var subtotal int64
	for _, item := range items {
		subtotal += models.ToMinorUnits(item.UnitPrice) * int64(item.Quantity)
	}
	return subtotal
}

// CalculateDiscount returns round(subtotal * percentage / 100), rounding
// halves up.
func CalculateDiscount(subtotal int64, percentage int) int64 {
	if percentage <= 0 || subtotal <= 0 {
		return 0
	}
	return (subtotal*int64(percentage) + 50) / 100
}

// CalculateCheckoutTotal computes the full breakdown.
func CalculateCheckoutTotal(items []models.LineItem, percentage int) CheckoutTotal {
	subtotal := CalculateSubtotal(items)
	discount := CalculateDiscount(subtotal, percentage)
	return CheckoutTotal{Subtotal: subtotal, Discount: discount, Total: subtotal - discount}
}

// Amounts converts the breakdown to currency units.
func (t CheckoutTotal) Amounts() (subtotal, discount, total decimal.Decimal) {
	return models.FromMinorUnits(t.Subtotal), models.FromMinorUnits(t.Discount), models.FromMinorUnits(t.Total)
}
