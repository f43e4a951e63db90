package models

import "time"

type Coupon struct {
	ID                 string    `json:"_id"`
	Code               string    `json:"code"`
	DiscountPercentage int       `json:"discountPercentage"`
	ExpirationDate     time.Time `json:"expirationDate"`
	UserID             string    `json:"userId"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// IsExpired reports whether the coupon's expiration date is strictly before now.
func (c *Coupon) IsExpired(now time.Time) bool {
	return c.ExpirationDate.Before(now)
}
