package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

const (
	rewardCodePrefix   = "GIFT"
	rewardCodeLength   = 6
	rewardCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CouponService validates, consumes and issues per-user coupons.
type CouponService struct {
	coupons repository.CouponRepository
	config  config.CheckoutConfig
	now     func() time.Time
	logger  *logging.LoggerV2
}

func NewCouponService(coupons repository.CouponRepository, cfg config.CheckoutConfig) *CouponService {
	return &CouponService{
		coupons: coupons,
		config:  cfg,
		now:     time.Now,
		logger:  logging.NewLoggerV2("coupon-service"),
	}
}

// GetActiveCoupon returns the user's usable coupon, or nil.
func (s *CouponService) GetActiveCoupon(ctx context.Context, userID string) (*models.Coupon, error) {
	coupon, err := s.coupons.FindActive(ctx, userID)
	if errors.Is(err, apperrors.ErrCouponNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if coupon.IsExpired(s.now()) {
		return nil, nil
	}
	return coupon, nil
}

// Validate returns the coupon if it belongs to userID, is active and has not
// expired. An expired coupon is deactivated on first sight and keeps
// reporting expired afterwards.
func (s *CouponService) Validate(ctx context.Context, userID, code string) (*models.Coupon, error) {
	if err := ValidateCouponCode(code); err != nil {
		return nil, err
	}

	coupon, err := s.coupons.FindByCode(ctx, userID, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrCouponNotFound) {
			metrics.CouponValidations.WithLabelValues(string(apperrors.KindCouponNotFound)).Inc()
		}
		return nil, err
	}

	if coupon.IsExpired(s.now()) {
		if coupon.IsActive {
			if err := s.coupons.Deactivate(ctx, userID, code); err != nil {
				return nil, err
			}
			s.logger.Info("Coupon expired and deactivated", logging.Fields{
				"user_id": userID,
				"code":    code,
			})
		}
		metrics.CouponValidations.WithLabelValues(string(apperrors.KindCouponExpired)).Inc()
		return nil, apperrors.ErrCouponExpired
	}

	if !coupon.IsActive {
		metrics.CouponValidations.WithLabelValues(string(apperrors.KindCouponNotFound)).Inc()
		return nil, apperrors.ErrCouponNotFound
	}

	metrics.CouponValidations.WithLabelValues("valid").Inc()
	return coupon, nil
}

// Consume deactivates a coupon after a paid order. Consuming an already
// inactive coupon is a no-op. Coupons that expired after the session was
// opened are still consumed since payment has been captured.
func (s *CouponService) Consume(ctx context.Context, userID, code string) error {
	coupon, err := s.coupons.FindByCode(ctx, userID, code)
	if errors.Is(err, apperrors.ErrCouponNotFound) {
		s.logger.Warn("Consumed coupon not found", logging.Fields{
			"user_id": userID,
			"code":    code,
		})
		return nil
	}
	if err != nil {
		return err
	}
	if !coupon.IsActive {
		s.logger.Warn("Consumed coupon already inactive", logging.Fields{
			"user_id": userID,
			"code":    code,
		})
		metrics.InactiveCouponsConsumed.Inc()
		return nil
	}

	if coupon.IsExpired(s.now()) {
		s.logger.Warn("Coupon expired between checkout and confirmation", logging.Fields{
			"user_id":         userID,
			"code":            code,
			"expiration_date": coupon.ExpirationDate,
		})
		metrics.ExpiredCouponsConsumed.Inc()
	}

	return s.coupons.Deactivate(ctx, userID, code)
}

// IssueReward grants a new coupon unless the user already holds a usable
// one. It reports nil, nil when nothing was issued.
func (s *CouponService) IssueReward(ctx context.Context, userID string) (*models.Coupon, error) {
	existing, err := s.coupons.FindActive(ctx, userID)
	switch {
	case err == nil && !existing.IsExpired(s.now()):
		return nil, nil
	case err == nil:
		// An expired coupon still occupies the active slot.
		if err := s.coupons.Deactivate(ctx, userID, existing.Code); err != nil {
			return nil, err
		}
	case !errors.Is(err, apperrors.ErrCouponNotFound):
		return nil, err
	}

	code, err := generateCouponCode()
	if err != nil {
		return nil, err
	}

	coupon := &models.Coupon{
		Code:               code,
		DiscountPercentage: s.config.RewardPercentage,
		ExpirationDate:     s.now().Add(s.config.RewardValidity).UTC(),
		UserID:             userID,
	}
	created, err := s.coupons.Create(ctx, coupon)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	metrics.RewardCouponsIssued.Inc()
	s.logger.Info("Reward coupon issued", logging.Fields{
		"user_id":    userID,
		"code":       coupon.Code,
		"percentage": coupon.DiscountPercentage,
	})
	return coupon, nil
}

func generateCouponCode() (string, error) {
	buf := make([]byte, rewardCodeLength)
	limit := big.NewInt(int64(len(rewardCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = rewardCodeAlphabet[n.Int64()]
	}
	return rewardCodePrefix + string(buf), nil
}
