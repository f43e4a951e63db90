package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// PaymentEventType represents the type of payment provider event.
type PaymentEventType string

const (
	PaymentEventSessionCompleted PaymentEventType = "checkout.session.completed"
	PaymentEventSessionExpired   PaymentEventType = "checkout.session.expired"
)

// PaymentEvent is a provider notification relayed onto the payments topic.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	SessionID string           `json:"session_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// SessionConfirmer turns a paid checkout session into an order.
type SessionConfirmer interface {
	Confirm(ctx context.Context, sessionID, callerID string) (*models.Order, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer consumes payment events and confirms completed sessions.
type KafkaConsumer struct {
	reader    messageReader
	confirmer SessionConfirmer
	logger    *logging.LoggerV2
	stopCh    chan struct{}

	retryBackoff time.Duration
}

const maxHandleAttempts = 3

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, confirmer SessionConfirmer, logger *logging.LoggerV2) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return newKafkaConsumer(reader, confirmer, logger)
}

func newKafkaConsumer(reader messageReader, confirmer SessionConfirmer, logger *logging.LoggerV2) *KafkaConsumer {
	return &KafkaConsumer{
		reader:    reader,
		confirmer: confirmer,
		logger:    logger,
		stopCh:    make(chan struct{}),

		retryBackoff: time.Second,
	}
}

// Start begins consuming events. Offsets are committed after a message is
// handled, so a crash replays it and Confirm absorbs the duplicate.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					c.logger.Info("Kafka consumer stopped")
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			if !c.handleWithRetry(ctx, msg) {
				return nil
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Failed to commit offset", logging.Fields{
					"offset": msg.Offset,
					"error":  err.Error(),
				})
			}
		}
	}
}

// handleWithRetry retries transient failures with a linear backoff. It
// reports false when the consumer was stopped while waiting.
func (c *KafkaConsumer) handleWithRetry(ctx context.Context, msg kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return true
		}
		if attempt >= maxHandleAttempts {
			c.logger.Error("Giving up on payment event", logging.Fields{
				"offset":   msg.Offset,
				"attempts": attempt,
				"error":    err.Error(),
			})
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(time.Duration(attempt) * c.retryBackoff):
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

// handleMessage returns an error only for failures worth redelivering.
func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return nil
	}

	switch event.Type {
	case PaymentEventSessionCompleted:
		return c.handleSessionCompleted(ctx, &event)
	case PaymentEventSessionExpired:
		c.logger.Info("Checkout session expired", logging.Fields{"session_id": event.SessionID})
		return nil
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
		return nil
	}
}

func (c *KafkaConsumer) handleSessionCompleted(ctx context.Context, event *PaymentEvent) error {
	c.logger.Info("Handling checkout session completed event", logging.Fields{
		"event_id":   event.ID,
		"session_id": event.SessionID,
	})

	order, err := c.confirmer.Confirm(ctx, event.SessionID, "")
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindPaymentNotConfirmed, apperrors.KindNotFound, apperrors.KindValidation:
			c.logger.Warn("Dropping payment event", logging.Fields{
				"session_id": event.SessionID,
				"error":      err.Error(),
			})
			return nil
		}
		c.logger.Error("Failed to confirm session", logging.Fields{
			"session_id": event.SessionID,
			"error":      err.Error(),
		})
		return errors.Join(errRetryable, err)
	}

	c.logger.Info("Session confirmed from event", logging.Fields{
		"session_id": event.SessionID,
		"order_id":   order.ID,
	})
	return nil
}

var errRetryable = errors.New("payment event handling failed")
