package models

import "github.com/shopspring/decimal"

// LineItem is one product/quantity pair submitted at checkout. UnitPrice is
// the price the client saw and must equal the catalog price.
type LineItem struct {
	ProductID string          `json:"_id"`
	Name      string          `json:"name,omitempty"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

type CreateCheckoutRequest struct {
	Products   []LineItem `json:"products"`
	CouponCode string     `json:"couponCode"`
}

type ConfirmCheckoutRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// CheckoutSession is the result of pricing a checkout. It is handed to the
// payment provider and never stored locally.
type CheckoutSession struct {
	ID          string          `json:"id"`
	URL         string          `json:"url"`
	UserID      string          `json:"-"`
	LineItems   []LineItem      `json:"-"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CouponCode  string          `json:"couponCode,omitempty"`
}

// ProviderSession is the payment provider's view of a checkout session.
type ProviderSession struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	Metadata      map[string]string
}

// IsPaid reports whether the provider has captured payment.
func (s *ProviderSession) IsPaid() bool {
	return s != nil && s.PaymentStatus == "paid"
}
