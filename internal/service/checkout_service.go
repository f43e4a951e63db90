package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

// Session metadata keys. The provider stores these with the session and
// returns them on retrieval. The encoded line items are split across
// products_0, products_1, ... because the provider caps each value.
const (
	metaUserID     = "userId"
	metaCouponCode = "couponCode"
	metaProducts   = "products"

	// metadataValueLimit is the longest metadata value the provider accepts.
	metadataValueLimit = 500
	// maxProductChunks leaves room for the other keys under the provider's
	// 50 key limit.
	maxProductChunks = 45
)

// OrderEventPublisher announces committed orders.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
}

type sessionProduct struct {
	ID       string          `json:"id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CheckoutService opens payment sessions and turns paid sessions into orders.
type CheckoutService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	carts    *CartService
	coupons  *CouponService
	provider clients.PaymentProvider
	events   OrderEventPublisher
	config   *config.Config
	logger   *logging.LoggerV2
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	carts *CartService,
	coupons *CouponService,
	provider clients.PaymentProvider,
	events OrderEventPublisher,
	cfg *config.Config,
) *CheckoutService {
	return &CheckoutService{
		products: products,
		orders:   orders,
		carts:    carts,
		coupons:  coupons,
		provider: provider,
		events:   events,
		config:   cfg,
		logger:   logging.NewLoggerV2("checkout-service"),
	}
}

// CreateSession prices the request against the catalog, applies an optional
// coupon and opens a provider session. An empty request checks out the
// stored cart.
func (s *CheckoutService) CreateSession(ctx context.Context, userID string, req *models.CreateCheckoutRequest) (*models.CheckoutSession, error) {
	session, err := s.createSession(ctx, userID, req)
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(string(apperrors.KindOf(err))).Inc()
		return nil, err
	}
	metrics.CheckoutSessions.WithLabelValues("created").Inc()
	return session, nil
}

func (s *CheckoutService) createSession(ctx context.Context, userID string, req *models.CreateCheckoutRequest) (*models.CheckoutSession, error) {
	s.logger.Info("Creating checkout session", logging.Fields{
		"user_id":    userID,
		"item_count": len(req.Products),
		"coupon":     req.CouponCode,
	})

	requested := req.Products
	if len(requested) == 0 {
		lines, err := s.carts.Materialize(ctx, userID)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			requested = append(requested, models.LineItem{
				ProductID: line.ID,
				Quantity:  line.Quantity,
				UnitPrice: line.Price,
			})
		}
	}
	if len(requested) == 0 {
		return nil, apperrors.ErrEmptyCart
	}

	items, err := s.resolveLineItems(ctx, requested)
	if err != nil {
		return nil, err
	}

	percentage := 0
	if req.CouponCode != "" {
		coupon, err := s.coupons.Validate(ctx, userID, req.CouponCode)
		if err != nil {
			s.logger.Info("Coupon rejected at checkout", logging.Fields{
				"user_id": userID,
				"code":    req.CouponCode,
				"reason":  string(apperrors.KindOf(err)),
			})
			invalid := apperrors.Wrap(apperrors.KindInvalidCoupon, "invalid coupon", err)
			invalid.Details = map[string]string{"reason": string(apperrors.KindOf(err))}
			return nil, invalid
		}
		percentage = coupon.DiscountPercentage
	}

	totals := CalculateCheckoutTotal(items, percentage)

	metadata, err := sessionMetadata(userID, req.CouponCode, items)
	if err != nil {
		return nil, err
	}

	if totals.Subtotal >= int64(s.config.Checkout.RewardThreshold)*100 {
		s.grantReward(ctx, userID)
	}

	providerSession, err := s.provider.CreateSession(ctx, &clients.SessionRequest{
		UserID:             userID,
		LineItems:          items,
		DiscountPercentage: percentage,
		Metadata:           metadata,
	})
	if err != nil {
		return nil, err
	}

	subtotal, discount, total := totals.Amounts()
	s.logger.Info("Checkout session created", logging.Fields{
		"user_id":    userID,
		"session_id": providerSession.ID,
		"subtotal":   subtotal.String(),
		"discount":   discount.String(),
		"total":      total.String(),
	})

	return &models.CheckoutSession{
		ID:          providerSession.ID,
		URL:         providerSession.URL,
		UserID:      userID,
		LineItems:   items,
		Subtotal:    subtotal,
		Discount:    discount,
		TotalAmount: total,
		CouponCode:  req.CouponCode,
	}, nil
}

// resolveLineItems re-prices each item from the catalog. Repeated products
// are merged into one line.
func (s *CheckoutService) resolveLineItems(ctx context.Context, requested []models.LineItem) ([]models.LineItem, error) {
	ids := make([]string, 0, len(requested))
	for _, item := range requested {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.Find(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]*models.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	items := make([]models.LineItem, 0, len(requested))
	index := make(map[string]int, len(requested))
	for _, item := range requested {
		if item.Quantity < 1 {
			return nil, apperrors.NewInvalidLineItem(item.ProductID, "quantity must be at least 1")
		}
		if item.Quantity > MaxLineQuantity {
			return nil, apperrors.NewInvalidLineItem(item.ProductID, "quantity exceeds the maximum per line")
		}
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, apperrors.NewInvalidLineItem(item.ProductID, "unknown product")
		}
		if !item.UnitPrice.Equal(product.Price) {
			return nil, apperrors.NewInvalidLineItem(item.ProductID, "price does not match catalog")
		}
		if models.ToMinorUnits(product.Price) <= 0 {
			return nil, apperrors.NewInvalidLineItem(item.ProductID, "price must be positive")
		}

		if i, seen := index[product.ID]; seen {
			items[i].Quantity += item.Quantity
			continue
		}
		index[product.ID] = len(items)
		items = append(items, models.LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}
	if err := checkSubtotal(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *CheckoutService) grantReward(ctx context.Context, userID string) {
	if _, err := s.coupons.IssueReward(ctx, userID); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to issue reward coupon", logging.Fields{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

func sessionMetadata(userID, couponCode string, items []models.LineItem) (map[string]string, error) {
	products := make([]sessionProduct, 0, len(items))
	for _, item := range items {
		products = append(products, sessionProduct{
			ID:       item.ProductID,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}
	data, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}

	chunks := splitMetadataValue(string(data), metadataValueLimit)
	if len(chunks) > maxProductChunks {
		return nil, apperrors.New(apperrors.KindInvalidLineItem, "too many products for one checkout session")
	}

	metadata := map[string]string{
		metaUserID:     userID,
		metaCouponCode: couponCode,
	}
	for i, chunk := range chunks {
		metadata[productChunkKey(i)] = chunk
	}
	return metadata, nil
}

func productChunkKey(i int) string {
	return metaProducts + "_" + strconv.Itoa(i)
}

// splitMetadataValue cuts s into pieces of at most limit bytes without
// splitting a UTF-8 sequence.
func splitMetadataValue(s string, limit int) []string {
	var chunks []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

// sessionProducts reassembles the encoded line items. Sessions opened
// before the value was chunked carry it under the bare products key.
func sessionProducts(metadata map[string]string) string {
	if _, ok := metadata[productChunkKey(0)]; !ok {
		return metadata[metaProducts]
	}
	var b strings.Builder
	for i := 0; ; i++ {
		chunk, ok := metadata[productChunkKey(i)]
		if !ok {
			break
		}
		b.WriteString(chunk)
	}
	return b.String()
}

// Confirm turns a paid provider session into exactly one order. Calling it
// again for the same session returns the existing order. callerID, when
// set, must own the session.
func (s *CheckoutService) Confirm(ctx context.Context, sessionID, callerID string) (*models.Order, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	s.logger.Info("Confirming checkout session", logging.Fields{
		"session_id": sessionID,
		"caller_id":  callerID,
	})

	existing, err := s.orders.FindBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		return s.replay(ctx, existing, callerID)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	session, err := s.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsPaid() {
		s.logger.Info("Checkout session not paid", logging.Fields{
			"session_id":     sessionID,
			"payment_status": session.PaymentStatus,
		})
		return nil, apperrors.ErrPaymentNotConfirmed
	}

	userID := session.Metadata[metaUserID]
	if userID == "" || (callerID != "" && userID != callerID) {
		return nil, apperrors.NotFound("checkout session")
	}

	order, err := orderFromSession(sessionID, session)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Commit(ctx, order); err != nil {
		if !errors.Is(err, apperrors.ErrDuplicateSession) {
			return nil, err
		}
		existing, err := s.orders.FindBySessionID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.replay(ctx, existing, callerID)
	}
	metrics.OrdersCommitted.Inc()

	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// replay answers a confirmation for a session that already has an order,
// finishing settlement if an earlier attempt stopped short.
func (s *CheckoutService) replay(ctx context.Context, order *models.Order, callerID string) (*models.Order, error) {
	if callerID != "" && order.UserID != callerID {
		return nil, apperrors.NotFound("checkout session")
	}
	metrics.ConfirmReplays.Inc()

	settled, err := s.orders.IsSettled(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if settled {
		s.logger.Debug("Order already settled", logging.Fields{"order_id": order.ID})
		return order, nil
	}

	s.logger.Info("Resuming settlement of committed order", logging.Fields{"order_id": order.ID})
	if err := s.settle(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// settle runs the post-commit steps. Each is idempotent so a failed
// settlement can be retried by confirming again.
func (s *CheckoutService) settle(ctx context.Context, order *models.Order) error {
	if order.CouponCode != "" {
		if err := s.coupons.Consume(ctx, order.UserID, order.CouponCode); err != nil {
			s.logger.Error("Failed to consume coupon", logging.Fields{
				"order_id": order.ID,
				"code":     order.CouponCode,
				"error":    err.Error(),
			})
			return err
		}
	}

	if err := s.carts.Clear(ctx, order.UserID); err != nil {
		s.logger.Error("Failed to clear cart", logging.Fields{
			"order_id": order.ID,
			"user_id":  order.UserID,
			"error":    err.Error(),
		})
		return err
	}

	if err := s.orders.MarkSettled(ctx, order.ID); err != nil {
		return err
	}

	if s.config.Features.EnableOrderEvents && s.events != nil {
		if err := s.events.PublishOrderCreated(ctx, order); err != nil {
			// Log but don't fail
			s.logger.Error("Failed to publish order created event", logging.Fields{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	s.logger.Info("Order settled", logging.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount.String(),
	})
	return nil
}

func orderFromSession(sessionID string, session *models.ProviderSession) (*models.Order, error) {
	var products []sessionProduct
	if err := json.Unmarshal([]byte(sessionProducts(session.Metadata)), &products); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "unreadable session line items", err)
	}

	order := &models.Order{
		UserID:          session.Metadata[metaUserID],
		Products:        make([]models.OrderProduct, 0, len(products)),
		TotalAmount:     models.FromMinorUnits(session.AmountTotal),
		StripeSessionID: sessionID,
		CouponCode:      session.Metadata[metaCouponCode],
	}
	for _, p := range products {
		order.Products = append(order.Products, models.OrderProduct{
			ProductID: p.ID,
			Quantity:  p.Quantity,
			Price:     p.Price,
		})
	}
	return order, nil
}
