package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// GetAllProducts handles GET /api/products
func (h *Handlers) GetAllProducts(c *gin.Context) {
	products, err := h.catalog.GetAllProducts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetFeaturedProducts handles GET /api/products/featured
func (h *Handlers) GetFeaturedProducts(c *gin.Context) {
	products, err := h.catalog.GetFeaturedProducts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// GetProductsByCategory handles GET /api/products/category/:category
func (h *Handlers) GetProductsByCategory(c *gin.Context) {
	products, err := h.catalog.GetProductsByCategory(c.Request.Context(), c.Param("category"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

// GetRecommendedProducts handles GET /api/products/recommendations
func (h *Handlers) GetRecommendedProducts(c *gin.Context) {
	products, err := h.catalog.GetRecommendedProducts(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, products)
}

// CreateProduct handles POST /api/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind request", logging.Fields{"error": err.Error()})
		badRequest(c, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// ToggleFeaturedProduct handles PATCH /api/products/:id
func (h *Handlers) ToggleFeaturedProduct(c *gin.Context) {
	product, err := h.catalog.ToggleFeatured(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/:id
func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
