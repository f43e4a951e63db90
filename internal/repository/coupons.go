package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PostgresCouponRepository implements CouponRepository. The coupons table
// carries a partial unique index on user_id for active rows, so a user can
// hold at most one active coupon.
type PostgresCouponRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresCouponRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresCouponRepository {
	return &PostgresCouponRepository{db: db, logger: logger}
}

const couponColumns = `id, code, discount_percentage, expiration_date, user_id, is_active, created_at, updated_at`

func (r *PostgresCouponRepository) FindActive(ctx context.Context, userID string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE user_id = $1 AND is_active`
	return r.getOne(ctx, query, userID)
}

func (r *PostgresCouponRepository) FindByCode(ctx context.Context, userID, code string) (*models.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE user_id = $1 AND code = $2`
	return r.getOne(ctx, query, userID, code)
}

func (r *PostgresCouponRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountPercentage,
		&c.ExpirationDate,
		&c.UserID,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch coupon: %w", err)
	}
	return &c, nil
}

// Create inserts an active coupon unless the user already holds one.
func (r *PostgresCouponRepository) Create(ctx context.Context, coupon *models.Coupon) (bool, error) {
	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	coupon.CreatedAt = now
	coupon.UpdatedAt = now
	coupon.IsActive = true

	query := `
		INSERT INTO coupons (
			id, code, discount_percentage, expiration_date, user_id, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $7)
		ON CONFLICT (user_id) WHERE is_active DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.DiscountPercentage,
		coupon.ExpirationDate,
		coupon.UserID,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create coupon", logging.Fields{
			"user_id": coupon.UserID,
			"error":   err.Error(),
		})
		return false, fmt.Errorf("insert coupon: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected == 1, nil
}

func (r *PostgresCouponRepository) Deactivate(ctx context.Context, userID, code string) error {
	query := `
		UPDATE coupons
		SET is_active = FALSE, updated_at = $3
		WHERE user_id = $1 AND code = $2 AND is_active
	`

	result, err := r.db.ExecContext(ctx, query, userID, code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.Debug("Coupon deactivated", logging.Fields{
		"user_id": userID,
		"code":    code,
		"changed": rowsAffected,
	})
	return nil
}
