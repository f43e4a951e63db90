package service

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
)

const featuredLoadTimeout = 10 * time.Second

// CatalogService handles product reads and admin writes. Checkout never
// writes prices.
type CatalogService struct {
	products repository.ProductRepository
	cache    repository.FeaturedCache
	sfg      singleflight.Group
	config   *config.Config
	logger   *logging.LoggerV2
}

// NewCatalogService creates a new catalog service. cache may be nil.
func NewCatalogService(
	products repository.ProductRepository,
	cache repository.FeaturedCache,
	cfg *config.Config,
) *CatalogService {
	return &CatalogService{
		products: products,
		cache:    cache,
		config:   cfg,
		logger:   logging.NewLoggerV2("catalog-service"),
	}
}

func (s *CatalogService) cacheEnabled() bool {
	return s.cache != nil && s.config.Features.EnableFeaturedCache
}

func (s *CatalogService) GetAllProducts(ctx context.Context) ([]*models.Product, error) {
	return s.products.ListAll(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *CatalogService) GetProductsByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	return s.products.FindByCategory(ctx, category)
}

// GetRecommendedProducts returns a random sample of the catalog.
func (s *CatalogService) GetRecommendedProducts(ctx context.Context) ([]*models.Product, error) {
	n := s.config.Checkout.RecommendationSize
	if n <= 0 {
		n = 4
	}
	return s.products.Sample(ctx, n)
}

// GetFeaturedProducts reads through the featured cache. Concurrent misses
// share one database query, which outlives any single caller so a
// cancelled request does not fail the others waiting on it.
func (s *CatalogService) GetFeaturedProducts(ctx context.Context) ([]*models.Product, error) {
	if !s.cacheEnabled() {
		return s.products.ListFeatured(ctx)
	}

	ch := s.sfg.DoChan("featured", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), featuredLoadTimeout)
		defer cancel()
		return s.loadFeatured(loadCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*models.Product), nil
	}
}

func (s *CatalogService) loadFeatured(ctx context.Context) ([]*models.Product, error) {
	cached, err := s.cache.GetFeatured(ctx)
	if err != nil {
		s.logger.Warn("Featured cache read failed", logging.Fields{"error": err.Error()})
	}
	if cached != nil {
		return cached, nil
	}

	products, err := s.products.ListFeatured(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetFeatured(ctx, products); err != nil {
		// Log but don't fail
		s.logger.Error("Failed to cache featured products", logging.Fields{"error": err.Error()})
	}
	return products, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if err := ValidateCreateProductRequest(req); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Category:    req.Category,
		Image:       req.Image,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateFeatured(ctx)
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateFeatured(ctx)
	return nil
}

// ToggleFeatured flips a product's featured flag and drops the cached list.
func (s *CatalogService) ToggleFeatured(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.products.ToggleFeatured(ctx, id)
	if err != nil {
		return nil, err
	}

	s.invalidateFeatured(ctx)
	return product, nil
}

func (s *CatalogService) invalidateFeatured(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.InvalidateFeatured(ctx); err != nil {
		s.logger.Error("Failed to invalidate featured cache", logging.Fields{"error": err.Error()})
	}
}
