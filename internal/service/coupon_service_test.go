package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func newCouponServiceAt(coupons *fakeCoupons, now time.Time) *CouponService {
	svc := NewCouponService(coupons, testConfig().Checkout)
	svc.now = func() time.Time { return now }
	return svc
}

func TestCouponService_Validate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTVALID1", UserID: "u1", DiscountPercentage: 10, IsActive: true, ExpirationDate: now.Add(time.Hour)},
		{Code: "GIFTUSED01", UserID: "u1", DiscountPercentage: 10, IsActive: false, ExpirationDate: now.Add(time.Hour)},
	}}
	svc := newCouponServiceAt(coupons, now)
	ctx := context.Background()

	coupon, err := svc.Validate(ctx, "u1", "GIFTVALID1")
	require.NoError(t, err)
	assert.Equal(t, 10, coupon.DiscountPercentage)

	_, err = svc.Validate(ctx, "u1", "GIFTUSED01")
	assert.True(t, errors.Is(err, apperrors.ErrCouponNotFound))

	_, err = svc.Validate(ctx, "u2", "GIFTVALID1")
	assert.True(t, errors.Is(err, apperrors.ErrCouponNotFound))

	_, err = svc.Validate(ctx, "u1", "  ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCouponService_ValidateExpiredDeactivatesOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTOLD123", UserID: "u1", DiscountPercentage: 10, IsActive: true, ExpirationDate: now.Add(-time.Minute)},
	}}
	svc := newCouponServiceAt(coupons, now)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "u1", "GIFTOLD123")
	assert.True(t, errors.Is(err, apperrors.ErrCouponExpired))
	assert.False(t, coupons.get("u1", "GIFTOLD123").IsActive)

	_, err = svc.Validate(ctx, "u1", "GIFTOLD123")
	assert.True(t, errors.Is(err, apperrors.ErrCouponExpired))
}

func TestCouponService_GetActiveCoupon(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTVALID1", UserID: "u1", IsActive: true, ExpirationDate: now.Add(time.Hour)},
		{Code: "GIFTOLD123", UserID: "u2", IsActive: true, ExpirationDate: now.Add(-time.Hour)},
	}}
	svc := newCouponServiceAt(coupons, now)
	ctx := context.Background()

	coupon, err := svc.GetActiveCoupon(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, coupon)
	assert.Equal(t, "GIFTVALID1", coupon.Code)

	coupon, err = svc.GetActiveCoupon(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, coupon)

	coupon, err = svc.GetActiveCoupon(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, coupon)
}

func TestCouponService_ConsumeIsIdempotent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTVALID1", UserID: "u1", IsActive: true, ExpirationDate: now.Add(time.Hour)},
	}}
	svc := newCouponServiceAt(coupons, now)
	ctx := context.Background()

	require.NoError(t, svc.Consume(ctx, "u1", "GIFTVALID1"))
	assert.False(t, coupons.get("u1", "GIFTVALID1").IsActive)

	before := testutil.ToFloat64(metrics.InactiveCouponsConsumed)
	require.NoError(t, svc.Consume(ctx, "u1", "GIFTVALID1"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InactiveCouponsConsumed))

	require.NoError(t, svc.Consume(ctx, "u1", "MISSING"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InactiveCouponsConsumed))
}

func TestCouponService_ConsumeExpiredCoupon(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTOLD123", UserID: "u1", IsActive: true, ExpirationDate: now.Add(-time.Minute)},
	}}
	svc := newCouponServiceAt(coupons, now)

	require.NoError(t, svc.Consume(context.Background(), "u1", "GIFTOLD123"))
	assert.False(t, coupons.get("u1", "GIFTOLD123").IsActive)
}

func TestCouponService_IssueRewardReplacesExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTOLD123", UserID: "u1", IsActive: true, ExpirationDate: now.Add(-time.Hour)},
	}}
	svc := newCouponServiceAt(coupons, now)

	issued, err := svc.IssueReward(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, issued)

	assert.False(t, coupons.get("u1", "GIFTOLD123").IsActive)
	assert.Equal(t, now.Add(30*24*time.Hour), issued.ExpirationDate)
	assert.Len(t, coupons.forUser("u1"), 2)
}

func TestCouponService_IssueRewardKeepsUsableCoupon(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	coupons := &fakeCoupons{coupons: []*models.Coupon{
		{Code: "GIFTVALID1", UserID: "u1", IsActive: true, ExpirationDate: now.Add(time.Hour)},
	}}
	svc := newCouponServiceAt(coupons, now)

	issued, err := svc.IssueReward(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, issued)
	assert.Len(t, coupons.forUser("u1"), 1)
}

func TestGenerateCouponCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateCouponCode()
		require.NoError(t, err)
		assert.Regexp(t, `^GIFT[A-Z0-9]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
