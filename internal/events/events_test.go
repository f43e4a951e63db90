package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func testLogger() *logging.LoggerV2 {
	logging.SetOutput(io.Discard)
	return logging.NewLoggerV2("events-test")
}

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaPublisher_PublishOrderCreated(t *testing.T) {
	writer := &recordingWriter{}
	p := &KafkaPublisher{writer: writer, topic: "orders", logger: testLogger()}

	order := &models.Order{
		ID:              "ord_1",
		UserID:          "u1",
		TotalAmount:     decimal.NewFromInt(90),
		StripeSessionID: "cs_1",
		CouponCode:      "GIFTABCDEF",
	}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	require.NoError(t, p.PublishOrderCreated(ctx, order))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "ord_1", string(msg.Key))

	var event OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeOrderCreated, event.Type)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, "req-42", event.CorrelationID)
	assert.Equal(t, "cs_1", event.Metadata["stripe_session_id"])
	assert.Equal(t, "GIFTABCDEF", event.Metadata["coupon_code"])
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: writer, topic: "orders", logger: testLogger()}

	err := p.PublishOrderCreated(context.Background(), &models.Order{ID: "ord_1"})
	assert.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{messages: msgs, closed: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case <-r.closed:
		return kafka.Message{}, io.EOF
	}
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	close(r.closed)
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64{}, r.committed...)
}

type fakeConfirmer struct {
	mu    sync.Mutex
	calls map[string]int
	errs  []error
}

func (f *fakeConfirmer) Confirm(ctx context.Context, sessionID, callerID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[sessionID]++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Order{ID: "ord_" + sessionID}, nil
}

func (f *fakeConfirmer) callsFor(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[sessionID]
}

func paymentMessage(t *testing.T, offset int64, eventType PaymentEventType, sessionID string) kafka.Message {
	t.Helper()
	data, err := json.Marshal(PaymentEvent{ID: "evt", Type: eventType, SessionID: sessionID})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: data}
}

func runConsumer(t *testing.T, c *KafkaConsumer, reader *fakeReader, wantCommits int) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == wantCommits }, 2*time.Second, 5*time.Millisecond)
	c.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestKafkaConsumer_ConfirmsCompletedSessions(t *testing.T) {
	reader := newFakeReader(
		paymentMessage(t, 1, PaymentEventSessionCompleted, "cs_1"),
		paymentMessage(t, 2, PaymentEventSessionExpired, "cs_2"),
		kafka.Message{Offset: 3, Value: []byte("not json")},
		paymentMessage(t, 4, PaymentEventSessionCompleted, "cs_1"),
	)
	confirmer := &fakeConfirmer{}
	c := newKafkaConsumer(reader, confirmer, testLogger())

	runConsumer(t, c, reader, 4)

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.commits())
	assert.Equal(t, 2, confirmer.callsFor("cs_1"))
	assert.Equal(t, 0, confirmer.callsFor("cs_2"))
}

func TestKafkaConsumer_RetriesTransientFailures(t *testing.T) {
	reader := newFakeReader(paymentMessage(t, 7, PaymentEventSessionCompleted, "cs_retry"))
	confirmer := &fakeConfirmer{errs: []error{
		apperrors.Wrap(apperrors.KindUnavailable, "provider down", errors.New("timeout")),
		nil,
	}}
	c := newKafkaConsumer(reader, confirmer, testLogger())
	c.retryBackoff = time.Millisecond

	runConsumer(t, c, reader, 1)

	assert.Equal(t, 2, confirmer.callsFor("cs_retry"))
}

func TestKafkaConsumer_DropsUnpaidSessions(t *testing.T) {
	reader := newFakeReader(paymentMessage(t, 9, PaymentEventSessionCompleted, "cs_unpaid"))
	confirmer := &fakeConfirmer{errs: []error{apperrors.ErrPaymentNotConfirmed}}
	c := newKafkaConsumer(reader, confirmer, testLogger())

	runConsumer(t, c, reader, 1)

	assert.Equal(t, 1, confirmer.callsFor("cs_unpaid"))
}
