package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

const dayLayout = "2006-01-02"

// OrderService reads the order ledger and builds sales analytics.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	config   *config.Config
	logger   *logging.LoggerV2
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	cfg *config.Config,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		users:    users,
		config:   cfg,
		logger:   logging.NewLoggerV2("order-service"),
	}
}

// GetUserOrders lists a user's orders, newest first.
func (s *OrderService) GetUserOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetOrder returns an order visible to the caller. Other users' orders are
// reported as missing unless the caller is an admin.
func (s *OrderService) GetOrder(ctx context.Context, id, callerID string, isAdmin bool) (*models.Order, error) {
	s.logger.Debug("Getting order", logging.Fields{"order_id": id})

	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != callerID {
		return nil, apperrors.NotFound("order")
	}
	return order, nil
}

// Analytics returns store totals and a zero-filled daily sales series
// covering the configured number of days up to now.
func (s *OrderService) Analytics(ctx context.Context, now time.Time) (*models.Analytics, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	sales, revenue, err := s.orders.Totals(ctx)
	if err != nil {
		return nil, err
	}

	days := s.config.Checkout.AnalyticsDays
	if days <= 0 {
		days = 7
	}
	end := now.UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	daily, err := s.orders.DailySales(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return &models.Analytics{
		Summary: models.AnalyticsSummary{
			Users:        users,
			Products:     products,
			TotalSales:   sales,
			TotalRevenue: revenue,
		},
		DailySales: FillDailySales(daily, start, end),
	}, nil
}

// FillDailySales returns one entry per calendar day from start to end
// inclusive, with zero sales for days absent from found.
func FillDailySales(found []models.DailySales, start, end time.Time) []models.DailySales {
	byDate := make(map[string]models.DailySales, len(found))
	for _, d := range found {
		byDate[d.Date] = d
	}

	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]models.DailySales, 0)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		date := day.Format(dayLayout)
		if d, ok := byDate[date]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, models.DailySales{Date: date, Sales: 0, Revenue: decimal.Zero})
	}
	return out
}
