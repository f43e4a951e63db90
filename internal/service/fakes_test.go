package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func init() {
	logging.SetOutput(io.Discard)
}

func testConfig() *config.Config {
	return &config.Config{
		Checkout: config.CheckoutConfig{
			RewardThreshold:    200,
			RewardPercentage:   10,
			RewardValidity:     30 * 24 * time.Hour,
			RecommendationSize: 4,
			AnalyticsDays:      7,
		},
		Features: config.FeatureFlags{
			EnableOrderEvents:   true,
			EnableFeaturedCache: true,
		},
	}
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[string]*models.Product
	listed   int
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: make(map[string]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Find(ctx context.Context, ids []string) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeProducts) FindByID(ctx context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperrors.NotFound("product")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) FindByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	return f.filter(func(p *models.Product) bool { return p.Category == category }), nil
}

func (f *fakeProducts) Sample(ctx context.Context, n int) ([]*models.Product, error) {
	all := f.filter(func(*models.Product) bool { return true })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (f *fakeProducts) ListAll(ctx context.Context) ([]*models.Product, error) {
	return f.filter(func(*models.Product) bool { return true }), nil
}

func (f *fakeProducts) ListFeatured(ctx context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	f.listed++
	f.mu.Unlock()
	return f.filter(func(p *models.Product) bool { return p.IsFeatured }), nil
}

func (f *fakeProducts) filter(keep func(*models.Product) bool) []*models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Product, 0)
	for _, p := range f.products {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeProducts) Create(ctx context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return apperrors.NotFound("product")
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProducts) ToggleFeatured(ctx context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, apperrors.NotFound("product")
	}
	p.IsFeatured = !p.IsFeatured
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.products), nil
}

type fakeCarts struct {
	mu    sync.Mutex
	carts map[string][]models.CartItem
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[string][]models.CartItem)}
}

func (f *fakeCarts) Get(ctx context.Context, userID string) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := append([]models.CartItem{}, f.carts[userID]...)
	return &models.Cart{UserID: userID, Items: items}, nil
}

func (f *fakeCarts) Save(ctx context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[cart.UserID] = append([]models.CartItem{}, cart.Items...)
	return nil
}

func (f *fakeCarts) items(userID string) []models.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.carts[userID]
}

type fakeCoupons struct {
	mu      sync.Mutex
	coupons []*models.Coupon
}

func (f *fakeCoupons) FindActive(ctx context.Context, userID string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.UserID == userID && c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrCouponNotFound
}

func (f *fakeCoupons) FindByCode(ctx context.Context, userID, code string) (*models.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.UserID == userID && c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrCouponNotFound
}

func (f *fakeCoupons) Create(ctx context.Context, coupon *models.Coupon) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.UserID == coupon.UserID && c.IsActive {
			return false, nil
		}
	}
	coupon.ID = uuid.NewString()
	coupon.IsActive = true
	cp := *coupon
	f.coupons = append(f.coupons, &cp)
	return true, nil
}

func (f *fakeCoupons) Deactivate(ctx context.Context, userID, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coupons {
		if c.UserID == userID && c.Code == code {
			c.IsActive = false
		}
	}
	return nil
}

func (f *fakeCoupons) get(userID, code string) *models.Coupon {
	c, _ := f.FindByCode(context.Background(), userID, code)
	return c
}

func (f *fakeCoupons) forUser(userID string) []*models.Coupon {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Coupon, 0)
	for _, c := range f.coupons {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

type fakeOrders struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	settled map[string]bool
	// findMisses hides existing orders from the next n session lookups,
	// simulating a concurrent confirmation that committed in between.
	findMisses int
	daily      []models.DailySales
	dailyStart time.Time
	dailyEnd   time.Time
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:  make(map[string]*models.Order),
		settled: make(map[string]bool),
	}
}

func (f *fakeOrders) Commit(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.StripeSessionID == order.StripeSessionID {
			return apperrors.ErrDuplicateSession
		}
	}
	order.ID = "ord_" + uuid.NewString()
	order.CreatedAt = time.Now()
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrders) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findMisses > 0 {
		f.findMisses--
		return nil, apperrors.NotFound("order")
	}
	for _, o := range f.orders {
		if o.StripeSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("order")
}

func (f *fakeOrders) GetByID(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrders) IsSettled(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return false, apperrors.NotFound("order")
	}
	return f.settled[id], nil
}

func (f *fakeOrders) MarkSettled(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return apperrors.NotFound("order")
	}
	f.settled[id] = true
	return nil
}

func (f *fakeOrders) DailySales(ctx context.Context, start, end time.Time) ([]models.DailySales, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dailyStart, f.dailyEnd = start, end
	return f.daily, nil
}

func (f *fakeOrders) Totals(ctx context.Context) (int, decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	revenue := decimal.Zero
	for _, o := range f.orders {
		revenue = revenue.Add(o.TotalAmount)
	}
	return len(f.orders), revenue, nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeUsers struct {
	users map[string]*models.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFound("user")
}

func (f *fakeUsers) Count(ctx context.Context) (int, error) {
	return len(f.users), nil
}
