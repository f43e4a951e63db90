// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})

	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_sessions_total",
		Help:      "Checkout session attempts by result kind.",
	}, []string{"result"})

	OrdersCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_committed_total",
		Help:      "Orders written to the ledger.",
	})

	ConfirmReplays = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_confirm_replays_total",
		Help:      "Confirmations answered with an existing order.",
	})

	CouponValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coupon_validations_total",
		Help:      "Coupon validations by result kind.",
	}, []string{"result"})

	RewardCouponsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reward_coupons_issued_total",
		Help:      "Reward coupons granted after a large checkout.",
	})

	ExpiredCouponsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_coupons_consumed_total",
		Help:      "Coupons that expired between session creation and payment confirmation.",
	})

	InactiveCouponsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inactive_coupons_consumed_total",
		Help:      "Consume calls for coupons that were already deactivated.",
	})
)

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
