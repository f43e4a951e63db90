package service

import (
	"context"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// CartService mutates carts by load, modify, save. It keeps no state between
// calls.
type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	logger   *logging.LoggerV2
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   logging.NewLoggerV2("cart-service"),
	}
}

// AddToCart adds one unit of a catalog product.
func (s *CartService) AddToCart(ctx context.Context, userID, productID string) ([]models.CartItem, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart.Add(productID)

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Debug("Product added to cart", logging.Fields{
		"user_id":    userID,
		"product_id": productID,
	})
	return cart.Items, nil
}

// UpdateQuantity overwrites a line's quantity. Zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) ([]models.CartItem, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := cart.SetQuantity(productID, quantity); err != nil {
		return nil, err
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart.Items, nil
}

// RemoveFromCart removes one line, or every line when productID is empty.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID string) ([]models.CartItem, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if productID == "" {
		cart.Clear()
	} else {
		cart.Remove(productID)
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart.Items, nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	_, err := s.RemoveFromCart(ctx, userID, "")
	return err
}

// Materialize resolves the cart against the catalog. Entries whose product
// no longer exists are dropped; order is preserved.
func (s *CartService) Materialize(ctx context.Context, userID string) ([]models.CartLine, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return []models.CartLine{}, nil
	}

	products, err := s.products.Find(ctx, cart.ProductIDs())
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]models.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			s.logger.Debug("Dropping dangling cart entry", logging.Fields{
				"user_id":    userID,
				"product_id": item.ProductID,
			})
			continue
		}
		lines = append(lines, models.CartLine{Product: *product, Quantity: item.Quantity})
	}
	return lines, nil
}
