package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)

	logger := logging.NewLoggerV2("storefront-service")
	logging.Infof("Starting storefront-service on port %d", cfg.Server.Port)

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	if err := repository.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("Failed to run migrations", logging.Fields{"error": err.Error()})
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	mongoClient, err := repository.ConnectMongo(startupCtx, cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", logging.Fields{"error": err.Error()})
	}
	cartRepo := repository.NewMongoCartRepository(mongoClient.Database(cfg.Mongo.Database), logger)
	if err := cartRepo.CreateIndexes(startupCtx); err != nil {
		logger.Fatal("Failed to create cart indexes", logging.Fields{"error": err.Error()})
	}
	cancelStartup()

	productRepo := repository.NewPostgresProductRepository(db, logger)
	couponRepo := repository.NewPostgresCouponRepository(db, logger)
	orderRepo := repository.NewPostgresOrderRepository(db, logger)
	userRepo := repository.NewPostgresUserRepository(db)

	checks := map[string]handlers.ReadinessCheck{
		"postgres": db.PingContext,
		"mongo": func(ctx context.Context) error {
			return mongoClient.Ping(ctx, nil)
		},
	}

	var featuredCache repository.FeaturedCache
	if cfg.Features.EnableFeaturedCache {
		redisClient := repository.NewRedisClient(cfg.Redis)
		defer redisClient.Close()
		featuredCache = repository.NewRedisFeaturedCache(redisClient, cfg.Redis.TTL)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	paymentClient := clients.NewStripePaymentClient(cfg.Stripe, logger)

	var orderEvents service.OrderEventPublisher
	if cfg.Features.EnableOrderEvents {
		publisher := events.NewKafkaPublisher(cfg.Kafka, logger)
		defer publisher.Close()
		orderEvents = publisher
	}

	catalogService := service.NewCatalogService(productRepo, featuredCache, cfg)
	cartService := service.NewCartService(cartRepo, productRepo)
	couponService := service.NewCouponService(couponRepo, cfg.Checkout)
	checkoutService := service.NewCheckoutService(
		productRepo,
		orderRepo,
		cartService,
		couponService,
		paymentClient,
		orderEvents,
		cfg,
	)
	orderService := service.NewOrderService(orderRepo, productRepo, userRepo, cfg)

	h := handlers.NewHandlers(
		catalogService,
		cartService,
		couponService,
		checkoutService,
		orderService,
		checks,
		cfg,
	)

	srv := server.New(h, userRepo, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                  cfg.Server.Port,
			"enable_order_events":   cfg.Features.EnableOrderEvents,
			"enable_payment_events": cfg.Features.EnablePaymentEvents,
			"enable_featured_cache": cfg.Features.EnableFeaturedCache,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	var eventConsumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentEvents {
		eventConsumer = events.NewKafkaConsumer(cfg.Kafka, checkoutService, logger)
		go func() {
			if err := eventConsumer.Start(context.Background()); err != nil {
				logger.Error("Event consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if eventConsumer != nil {
		eventConsumer.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	if err := mongoClient.Disconnect(ctx); err != nil {
		logger.Error("Failed to disconnect MongoDB", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	logging.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
