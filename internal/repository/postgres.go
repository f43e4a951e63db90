package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const uniqueViolation = "23505"

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

// NewPostgresOrderRepository creates a new PostgreSQL order repository.
func NewPostgresOrderRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `id, user_id, products, total_amount, stripe_session_id, coupon_code, created_at, updated_at`

// Commit inserts a new order keyed by its provider session id.
func (r *PostgresOrderRepository) Commit(ctx context.Context, order *models.Order) error {
	r.logger.Debug("Committing order", logging.Fields{
		"user_id":    order.UserID,
		"session_id": order.StripeSessionID,
	})

	if order.ID == "" {
		order.ID = generateOrderID()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	productsJSON, err := json.Marshal(order.Products)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, user_id, products, total_amount, stripe_session_id, coupon_code,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		productsJSON,
		order.TotalAmount,
		order.StripeSessionID,
		sql.NullString{String: order.CouponCode, Valid: order.CouponCode != ""},
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.logger.Info("Order already committed for session", logging.Fields{
				"session_id": order.StripeSessionID,
			})
			return apperrors.Wrap(apperrors.KindDuplicateSession, "order for this session already exists", err)
		}
		r.logger.Error("Failed to commit order", logging.Fields{
			"session_id": order.StripeSessionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("insert order: %w", err)
	}

	r.logger.Info("Order committed", logging.Fields{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"total":      order.TotalAmount.String(),
		"session_id": order.StripeSessionID,
	})
	return nil
}

// FindBySessionID returns the order created for a provider session.
func (r *PostgresOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE stripe_session_id = $1`
	return r.getOne(ctx, query, sessionID)
}

// GetByID retrieves an order by its unique identifier.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.logger.Debug("Fetching order by ID", logging.Fields{"order_id": id})

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PostgresOrderRepository) getOne(ctx context.Context, query string, arg string) (*models.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("order")
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", logging.Fields{
			"key":   arg,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	return order, nil
}

// ListByUser returns a user's orders, newest first.
func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Debug("Orders listed", logging.Fields{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

// IsSettled reports whether the post-payment steps have completed for an order.
func (r *PostgresOrderRepository) IsSettled(ctx context.Context, id string) (bool, error) {
	var settledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT settled_at FROM orders WHERE id = $1`, id).Scan(&settledAt)
	if err == sql.ErrNoRows {
		return false, apperrors.NotFound("order")
	}
	if err != nil {
		return false, fmt.Errorf("read settled_at: %w", err)
	}
	return settledAt.Valid, nil
}

// MarkSettled records that coupon consumption and cart clearing are done.
// Settling twice keeps the first timestamp.
func (r *PostgresOrderRepository) MarkSettled(ctx context.Context, id string) error {
	query := `
		UPDATE orders
		SET settled_at = COALESCE(settled_at, $2), updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to settle order", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return fmt.Errorf("settle order: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("order")
	}
	return nil
}

// DailySales aggregates order count and revenue per UTC day.
func (r *PostgresOrderRepository) DailySales(ctx context.Context, start, end time.Time) ([]models.DailySales, error) {
	query := `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	out := make([]models.DailySales, 0)
	for rows.Next() {
		var d models.DailySales
		if err := rows.Scan(&d.Date, &d.Sales, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Totals returns the number of orders and their summed amount.
func (r *PostgresOrderRepository) Totals(ctx context.Context) (int, decimal.Decimal, error) {
	var count int
	var revenue decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM orders`).Scan(&count, &revenue)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("order totals: %w", err)
	}
	return count, revenue, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var productsJSON []byte
	var couponCode sql.NullString

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&productsJSON,
		&order.TotalAmount,
		&order.StripeSessionID,
		&couponCode,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(productsJSON, &order.Products); err != nil {
		return nil, err
	}
	if couponCode.Valid {
		order.CouponCode = couponCode.String
	}
	return &order, nil
}

func generateOrderID() string {
	return "ord_" + uuid.NewString()
}
