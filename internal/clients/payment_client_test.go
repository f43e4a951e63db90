package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func newTestStripeClient(t *testing.T, handler http.HandlerFunc) *StripePaymentClient {
	t.Helper()
	logging.SetOutput(io.Discard)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	cfg := config.StripeConfig{
		SecretKey:       "sk_test_123",
		Currency:        "usd",
		SuccessURL:      "http://localhost/success",
		CancelURL:       "http://localhost/cancel",
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
	}
	return newStripePaymentClient(cfg, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, logging.NewLoggerV2("payment-test"))
}

func TestStripePaymentClient_CreateSessionWithDiscount(t *testing.T) {
	var couponCalls, sessionCalls int32
	var sessionForm string

	c := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/coupons":
			atomic.AddInt32(&couponCalls, 1)
			assert.Contains(t, string(body), "percent_off=10")
			_, _ = w.Write([]byte(`{"id":"co_1","object":"coupon","percent_off":10,"duration":"once"}`))
		case "/v1/checkout/sessions":
			atomic.AddInt32(&sessionCalls, 1)
			sessionForm = string(body)
			_, _ = w.Write([]byte(`{"id":"cs_1","object":"checkout.session","url":"https://pay.test/cs_1","payment_status":"unpaid","amount_total":9000,"metadata":{"userId":"u1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	session, err := c.CreateSession(context.Background(), &SessionRequest{
		UserID: "u1",
		LineItems: []models.LineItem{
			{ProductID: "p1", Name: "Jacket", Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
		},
		DiscountPercentage: 10,
		Metadata:           map[string]string{"userId": "u1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, int64(9000), session.AmountTotal)
	assert.Equal(t, int32(1), atomic.LoadInt32(&couponCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&sessionCalls))
	assert.True(t, strings.Contains(sessionForm, "unit_amount%5D=10000") || strings.Contains(sessionForm, "unit_amount]=10000"))
	assert.Contains(t, sessionForm, "co_1")
}

func TestStripePaymentClient_RetrieveSession(t *testing.T) {
	c := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/checkout/sessions/cs_paid" {
			_, _ = w.Write([]byte(`{"id":"cs_paid","object":"checkout.session","payment_status":"paid","amount_total":25000,"metadata":{"userId":"u9","couponCode":""}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such checkout.session"}}`))
	})

	session, err := c.RetrieveSession(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.True(t, session.IsPaid())
	assert.Equal(t, "u9", session.Metadata["userId"])

	_, err = c.RetrieveSession(context.Background(), "cs_missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestStripePaymentClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	c := newTestStripeClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	})

	for i := 0; i < 2; i++ {
		_, err := c.RetrieveSession(context.Background(), "cs_1")
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
	}

	_, err := c.RetrieveSession(context.Background(), "cs_1")
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
