package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	IsFeatured  bool            `json:"isFeatured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
}
