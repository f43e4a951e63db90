package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const cartsCollection = "carts"

// ConnectMongo opens a client and verifies it with a ping.
func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(cfg.Timeout).
		SetTimeout(cfg.Timeout).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logging.Info("MongoDB connected", logging.Fields{"database": cfg.Database})
	return client, nil
}

// MongoCartRepository stores one document per user in the carts collection.
type MongoCartRepository struct {
	collection *mongo.Collection
	logger     *logging.LoggerV2
}

func NewMongoCartRepository(db *mongo.Database, logger *logging.LoggerV2) *MongoCartRepository {
	return &MongoCartRepository{
		collection: db.Collection(cartsCollection),
		logger:     logger,
	}
}

func (m *MongoCartRepository) Get(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

// Save replaces the stored item list. Concurrent saves for one user are
// last-writer-wins.
func (m *MongoCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now().UTC()
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": bson.M{
		"items":      cart.Items,
		"updated_at": cart.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		m.logger.Error("Failed to save cart", logging.Fields{
			"user_id": cart.UserID,
			"error":   err.Error(),
		})
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	m.logger.Debug("Cart saved", logging.Fields{
		"user_id": cart.UserID,
		"items":   len(cart.Items),
	})
	return nil
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
