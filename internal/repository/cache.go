package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const featuredProductsKey = "featured_products"

// RedisFeaturedCache implements FeaturedCache using Redis.
type RedisFeaturedCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.LoggerV2
}

// NewRedisClient builds a client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisFeaturedCache wraps client. A zero ttl stores entries until they
// are invalidated.
func NewRedisFeaturedCache(client *redis.Client, ttl time.Duration) *RedisFeaturedCache {
	return &RedisFeaturedCache{
		client: client,
		ttl:    ttl,
		logger: logging.NewLoggerV2("featured-cache"),
	}
}

// GetFeatured returns nil, nil on a cache miss.
func (c *RedisFeaturedCache) GetFeatured(ctx context.Context) ([]*models.Product, error) {
	data, err := c.client.Get(ctx, featuredProductsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", logging.Fields{"key": featuredProductsKey})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"key":   featuredProductsKey,
			"error": err.Error(),
		})
		return nil, err
	}

	var products []*models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, err
	}

	c.logger.Debug("Cache hit", logging.Fields{"key": featuredProductsKey, "count": len(products)})
	return products, nil
}

func (c *RedisFeaturedCache) SetFeatured(ctx context.Context, products []*models.Product) error {
	data, err := json.Marshal(products)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, featuredProductsKey, data, c.ttl).Err(); err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"key":   featuredProductsKey,
			"error": err.Error(),
		})
		return err
	}
	return nil
}

func (c *RedisFeaturedCache) InvalidateFeatured(ctx context.Context) error {
	if err := c.client.Del(ctx, featuredProductsKey).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"key":   featuredProductsKey,
			"error": err.Error(),
		})
		return err
	}
	c.logger.Debug("Featured products invalidated")
	return nil
}
