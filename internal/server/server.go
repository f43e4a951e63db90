package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	http   *http.Server
}

// New builds the router. users resolves token subjects for the auth
// middleware.
func New(h *handlers.Handlers, users middleware.UserLookup, cfg *config.Config) *Server {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(),
		gin.Recovery(),
	)
	if cfg.Features.EnableMetrics {
		router.Use(metrics.Middleware())
	}

	s := &Server{
		config: cfg,
		router: router,
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.setupRoutes(h, users)
	return s
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes(h *handlers.Handlers, users middleware.UserLookup) {
	s.router.GET("/health", h.Health)
	s.router.GET("/ready", h.Ready)
	s.router.GET("/version", h.Version)
	if s.config.Features.EnableMetrics {
		s.router.GET("/metrics", h.Metrics)
	}

	auth := middleware.Auth(s.config.Auth.AccessTokenSecret, s.config.Auth.CookieName, users)
	admin := middleware.AdminOnly()
	limited := middleware.NewRateLimiter(s.config.Server.RateLimit, s.config.Server.RateBurst).Middleware()

	api := s.router.Group("/api")
	api.Use(middleware.Timeout(s.config.Server.RequestTimeout))

	products := api.Group("/products")
	{
		products.GET("", auth, admin, h.GetAllProducts)
		products.GET("/featured", h.GetFeaturedProducts)
		products.GET("/category/:category", h.GetProductsByCategory)
		products.GET("/recommendations", auth, h.GetRecommendedProducts)
		products.POST("", auth, admin, h.CreateProduct)
		products.PATCH("/:id", auth, admin, h.ToggleFeaturedProduct)
		products.DELETE("/:id", auth, admin, h.DeleteProduct)
	}

	cart := api.Group("/cart", auth)
	{
		cart.GET("", h.GetCart)
		cart.POST("", h.AddToCart)
		cart.PUT("/:id", h.UpdateQuantity)
		cart.DELETE("", h.RemoveFromCart)
	}

	coupons := api.Group("/coupons", auth)
	{
		coupons.GET("", h.GetCoupon)
		coupons.POST("/validate", limited, h.ValidateCoupon)
	}

	payments := api.Group("/payments", auth, limited)
	{
		payments.POST("/create-checkout-session", h.CreateCheckoutSession)
		payments.POST("/checkout-success", h.CheckoutSuccess)
	}

	checkout := api.Group("/checkout", auth, limited)
	{
		checkout.POST("/session", h.CreateCheckoutSession)
		checkout.POST("/confirm", h.CheckoutSuccess)
	}

	orders := api.Group("/orders", auth)
	{
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrder)
	}

	api.GET("/analytics", auth, admin, h.GetAnalytics)
}

func (s *Server) Start() error {
	logging.Infof("Starting server on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
