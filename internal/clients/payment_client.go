package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PaymentProvider hosts checkout sessions.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req *SessionRequest) (*models.ProviderSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*models.ProviderSession, error)
}

// SessionRequest describes a checkout session to open with the provider.
type SessionRequest struct {
	UserID    string
	LineItems []models.LineItem
	// DiscountPercentage is applied to the whole session as a one-off
	// provider coupon. Zero means no discount.
	DiscountPercentage int
	Metadata           map[string]string
}

// Ensure StripePaymentClient implements PaymentProvider
var _ PaymentProvider = (*StripePaymentClient)(nil)

// StripePaymentClient implements PaymentProvider on Stripe Checkout. Calls go
// through a circuit breaker and an HTTP client with a fixed timeout.
type StripePaymentClient struct {
	api        *client.API
	breaker    *gobreaker.CircuitBreaker[any]
	currency   string
	successURL string
	cancelURL  string
	logger     *logging.LoggerV2
}

// NewStripePaymentClient creates a new Stripe-backed payment client.
func NewStripePaymentClient(cfg config.StripeConfig, logger *logging.LoggerV2) *StripePaymentClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return newStripePaymentClient(cfg, stripe.NewBackends(httpClient), logger)
}

func newStripePaymentClient(cfg config.StripeConfig, backends *stripe.Backends, logger *logging.LoggerV2) *StripePaymentClient {
	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "stripe",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Client errors mean the provider is up.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var stripeErr *stripe.Error
			return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode > 0 && stripeErr.HTTPStatusCode < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &StripePaymentClient{
		api:        client.New(cfg.SecretKey, backends),
		breaker:    breaker,
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     logger,
	}
}

// CreateSession opens a hosted checkout session. Unit amounts are sent in
// minor units.
func (c *StripePaymentClient) CreateSession(ctx context.Context, req *SessionRequest) (*models.ProviderSession, error) {
	c.logger.Debug("Creating checkout session", logging.Fields{
		"user_id":  req.UserID,
		"items":    len(req.LineItems),
		"discount": req.DiscountPercentage,
	})

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(c.successURL),
		CancelURL:          stripe.String(c.cancelURL),
	}
	params.Context = ctx

	for _, item := range req.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.Image != "" {
			productData.Images = stripe.StringSlice([]string{item.Image})
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(models.ToMinorUnits(item.UnitPrice)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	if req.DiscountPercentage > 0 {
		couponID, err := c.createCoupon(ctx, req.DiscountPercentage)
		if err != nil {
			return nil, err
		}
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(couponID)},
		}
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.api.CheckoutSessions.New(params)
	})
	if err != nil {
		c.logger.Error("Checkout session request failed", logging.Fields{
			"user_id": req.UserID,
			"error":   err.Error(),
		})
		return nil, classify("create checkout session", err)
	}

	session := toProviderSession(result.(*stripe.CheckoutSession))
	c.logger.Info("Checkout session created", logging.Fields{
		"user_id":      req.UserID,
		"session_id":   session.ID,
		"amount_total": session.AmountTotal,
	})
	return session, nil
}

// RetrieveSession fetches the provider's current view of a session.
func (c *StripePaymentClient) RetrieveSession(ctx context.Context, sessionID string) (*models.ProviderSession, error) {
	c.logger.Debug("Retrieving checkout session", logging.Fields{"session_id": sessionID})

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	result, err := c.breaker.Execute(func() (any, error) {
		return c.api.CheckoutSessions.Get(sessionID, params)
	})
	if err != nil {
		c.logger.Error("Checkout session lookup failed", logging.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, classify("retrieve checkout session", err)
	}

	return toProviderSession(result.(*stripe.CheckoutSession)), nil
}

func (c *StripePaymentClient) createCoupon(ctx context.Context, percentage int) (string, error) {
	params := &stripe.CouponParams{
		PercentOff: stripe.Float64(float64(percentage)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
	}
	params.Context = ctx

	result, err := c.breaker.Execute(func() (any, error) {
		return c.api.Coupons.New(params)
	})
	if err != nil {
		return "", classify("create provider coupon", err)
	}
	return result.(*stripe.Coupon).ID, nil
}

func toProviderSession(s *stripe.CheckoutSession) *models.ProviderSession {
	return &models.ProviderSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
}

// classify maps provider failures onto application error kinds.
func classify(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Wrap(apperrors.KindUnavailable, "payment provider unavailable", err)
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusNotFound:
			return apperrors.Wrap(apperrors.KindNotFound, "checkout session not found", err)
		case stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500:
			return apperrors.Wrap(apperrors.KindValidation, "payment provider rejected request", err)
		}
	}
	return apperrors.Wrap(apperrors.KindUnavailable, fmt.Sprintf("%s failed", op), err)
}
