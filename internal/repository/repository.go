package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// ProductRepository is the catalog store.
type ProductRepository interface {
	// Find returns the products with the given ids. Unknown ids are skipped.
	Find(ctx context.Context, ids []string) ([]*models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindByCategory(ctx context.Context, category string) ([]*models.Product, error)
	// Sample returns up to n products chosen at random.
	Sample(ctx context.Context, n int) ([]*models.Product, error)
	ListAll(ctx context.Context) ([]*models.Product, error)
	ListFeatured(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	ToggleFeatured(ctx context.Context, id string) (*models.Product, error)
	Count(ctx context.Context) (int, error)
}

// CartRepository loads and stores whole cart documents.
type CartRepository interface {
	// Get returns the user's cart, or an empty cart if none is stored.
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

// CouponRepository stores per-user coupons.
type CouponRepository interface {
	// FindActive returns the user's active coupon or ErrCouponNotFound.
	FindActive(ctx context.Context, userID string) (*models.Coupon, error)
	// FindByCode looks up a coupon owned by userID regardless of its active flag.
	FindByCode(ctx context.Context, userID, code string) (*models.Coupon, error)
	// Create inserts an active coupon. It reports false when the user already
	// holds an active coupon.
	Create(ctx context.Context, coupon *models.Coupon) (bool, error)
	// Deactivate clears the active flag. It is a no-op for inactive coupons.
	Deactivate(ctx context.Context, userID, code string) error
}

// OrderRepository is the order ledger.
type OrderRepository interface {
	// Commit inserts a new order. A second order for the same provider
	// session fails with ErrDuplicateSession.
	Commit(ctx context.Context, order *models.Order) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Order, error)
	IsSettled(ctx context.Context, id string) (bool, error)
	MarkSettled(ctx context.Context, id string) error
	// DailySales groups orders created in [start, end) by UTC day. Days
	// without orders are absent.
	DailySales(ctx context.Context, start, end time.Time) ([]models.DailySales, error)
	Totals(ctx context.Context) (sales int, revenue decimal.Decimal, err error)
}

// UserRepository reads accounts owned by the auth service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Count(ctx context.Context) (int, error)
}

// FeaturedCache caches the featured product list.
type FeaturedCache interface {
	GetFeatured(ctx context.Context) ([]*models.Product, error)
	SetFeatured(ctx context.Context, products []*models.Product) error
	InvalidateFeatured(ctx context.Context) error
}
