package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// EventType represents the type of order event.
type EventType string

const (
	EventTypeOrderCreated EventType = "order.created"
)

// OrderEvent represents an order-related event.
type OrderEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	OrderID       string            `json:"order_id"`
	UserID        string            `json:"user_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// messageWriter is the subset of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *logging.LoggerV2
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.OrdersTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer: writer,
		topic:  cfg.OrdersTopic,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order created event keyed by order id.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.logger.Debug("Publishing order created event", logging.Fields{
		"order_id": order.ID,
	})

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeOrderCreated, order.ID, order.UserID, data)
	event.Metadata["stripe_session_id"] = order.StripeSessionID
	if order.CouponCode != "" {
		event.Metadata["coupon_code"] = order.CouponCode
	}
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, orderID, userID string, data []byte) *OrderEvent {
	event := &OrderEvent{
		ID:        generateEventID(),
		Type:      eventType,
		OrderID:   orderID,
		UserID:    userID,
		Data:      data,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}

	if requestID, ok := ctx.Value(middleware.RequestIDKey).(string); ok {
		event.CorrelationID = requestID
	}

	return event
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"order_id":   event.OrderID,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Info("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"order_id":   event.OrderID,
		"topic":      p.topic,
	})

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

func generateEventID() string {
	return "evt_" + uuid.NewString()
}

// MockEventPublisher is a mock implementation for testing.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []*OrderEvent
	Err    error
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]*OrderEvent, 0),
	}
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, &OrderEvent{
		Type:    EventTypeOrderCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
	})
	return nil
}

// Count returns the number of recorded events.
func (m *MockEventPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Events)
}
