package clients

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

// MockPaymentProvider is an in-memory PaymentProvider for testing. Sessions
// start unpaid; call MarkPaid to simulate a completed payment.
type MockPaymentProvider struct {
	mu       sync.Mutex
	sessions map[string]*models.ProviderSession
	Requests []*SessionRequest
	// Err, when set, is returned from every call.
	Err error
}

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{sessions: make(map[string]*models.ProviderSession)}
}

func (m *MockPaymentProvider) CreateSession(ctx context.Context, req *SessionRequest) (*models.ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	m.Requests = append(m.Requests, req)

	for k, v := range req.Metadata {
		if len(k) > 40 || utf8.RuneCountInString(v) > 500 {
			return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("invalid metadata entry %q", k))
		}
	}
	if len(req.Metadata) > 50 {
		return nil, apperrors.New(apperrors.KindValidation, "too many metadata keys")
	}

	var subtotal int64
	for _, item := range req.LineItems {
		subtotal += models.ToMinorUnits(item.UnitPrice) * int64(item.Quantity)
	}
	discount := models.ToMinorUnits(
		models.FromMinorUnits(subtotal).Mul(decimal.NewFromInt(int64(req.DiscountPercentage))).Div(decimal.NewFromInt(100)),
	)

	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	id := fmt.Sprintf("cs_test_%d", len(m.sessions)+1)
	session := &models.ProviderSession{
		ID:            id,
		URL:           "https://checkout.example.test/" + id,
		PaymentStatus: "unpaid",
		AmountTotal:   subtotal - discount,
		Metadata:      metadata,
	}
	m.sessions[id] = session

	out := *session
	return &out, nil
}

func (m *MockPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*models.ProviderSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "checkout session not found")
	}
	out := *session
	return &out, nil
}

// MarkPaid flips a session to paid.
func (m *MockPaymentProvider) MarkPaid(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.PaymentStatus = "paid"
	}
}

// SessionCount returns the number of sessions created.
func (m *MockPaymentProvider) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
