package models

import (
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
)

// Cart is the per-user list of product references. Entries are unique by
// product id.
type Cart struct {
	UserID    string     `json:"userId" bson:"user_id"`
	Items     []CartItem `json:"cartItems" bson:"items"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`
}

type CartItem struct {
	ProductID string `json:"product" bson:"product_id"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// CartLine is a cart entry resolved against the catalog.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (c *Cart) find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments the quantity of an existing entry or appends a new one
// with quantity 1.
func (c *Cart) Add(productID string) {
	if i := c.find(productID); i >= 0 {
		c.Items[i].Quantity++
		return
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: 1})
}

// SetQuantity overwrites the quantity of an entry. Zero removes it, and is
// a no-op for a product that is not in the cart.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return apperrors.NewValidationError("quantity", "quantity cannot be negative")
	}
	i := c.find(productID)
	if quantity == 0 {
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return nil
	}
	if i < 0 {
		return apperrors.New(apperrors.KindNotFound, "product not found in cart")
	}
	c.Items[i].Quantity = quantity
	return nil
}

// Remove drops one entry. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	if i := c.find(productID); i >= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ProductIDs returns the referenced ids in cart order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
