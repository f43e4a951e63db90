package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	db     *sql.DB
	logger *logging.LoggerV2
}

func NewPostgresProductRepository(db *sql.DB, logger *logging.LoggerV2) *PostgresProductRepository {
	return &PostgresProductRepository{db: db, logger: logger}
}

const productColumns = `id, name, description, price, category, image, is_featured, created_at, updated_at`

// Find returns the products whose ids appear in ids. Unknown ids are ignored.
func (r *PostgresProductRepository) Find(ctx context.Context, ids []string) ([]*models.Product, error) {
	if len(ids) == 0 {
		return []*models.Product{}, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	return r.list(ctx, query, pq.Array(ids))
}

func (r *PostgresProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("product")
	}
	if err != nil {
		r.logger.Error("Failed to fetch product", logging.Fields{
			"product_id": id,
			"error":      err.Error(),
		})
		return nil, fmt.Errorf("fetch product: %w", err)
	}
	return product, nil
}

func (r *PostgresProductRepository) FindByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE category = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, category)
}

func (r *PostgresProductRepository) Sample(ctx context.Context, n int) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY random() LIMIT $1`
	return r.list(ctx, query, n)
}

func (r *PostgresProductRepository) ListAll(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *PostgresProductRepository) ListFeatured(ctx context.Context) ([]*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_featured ORDER BY created_at DESC`
	return r.list(ctx, query)
}

func (r *PostgresProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	query := `
		INSERT INTO products (
			id, name, description, price, category, image, is_featured, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Category,
		product.Image,
		product.IsFeatured,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create product", logging.Fields{
			"name":  product.Name,
			"error": err.Error(),
		})
		return fmt.Errorf("insert product: %w", err)
	}

	r.logger.Info("Product created", logging.Fields{
		"product_id": product.ID,
		"price":      product.Price.String(),
	})
	return nil
}

func (r *PostgresProductRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("product")
	}

	r.logger.Info("Product deleted", logging.Fields{"product_id": id})
	return nil
}

// ToggleFeatured flips the featured flag and returns the updated product.
func (r *PostgresProductRepository) ToggleFeatured(ctx context.Context, id string) (*models.Product, error) {
	query := `
		UPDATE products
		SET is_featured = NOT is_featured, updated_at = $2
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id, time.Now().UTC()))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("toggle featured: %w", err)
	}

	r.logger.Info("Product featured flag toggled", logging.Fields{
		"product_id":  id,
		"is_featured": product.IsFeatured,
	})
	return product, nil
}

func (r *PostgresProductRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (r *PostgresProductRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.Image,
		&p.IsFeatured,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
