package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an immutable record of a paid checkout. At most one order exists
// per StripeSessionID.
type Order struct {
	ID              string          `json:"_id"`
	UserID          string          `json:"user"`
	Products        []OrderProduct  `json:"products"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	StripeSessionID string          `json:"stripeSessionId"`
	CouponCode      string          `json:"couponCode,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type OrderProduct struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type DailySales struct {
	Date    string          `json:"date"`
	Sales   int             `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

type AnalyticsSummary struct {
	Users        int             `json:"users"`
	Products     int             `json:"products"`
	TotalSales   int             `json:"totalSales"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

type Analytics struct {
	Summary    AnalyticsSummary `json:"analyticsData"`
	DailySales []DailySales     `json:"dailySalesData"`
}
