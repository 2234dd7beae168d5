package payments

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/checkout/payment-gateway/internal/domain"
	"github.com/checkout/payment-gateway/internal/processor"
)

// fakePaymentRepository is an in-memory stand-in for the postgres
// repository, keyed by idempotency key, good enough to exercise the
// service's insert-or-replay branches without a database.
type fakePaymentRepository struct {
	mu       sync.Mutex
	byKey    map[string]*domain.Payment
	byID     map[string]*domain.Payment
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{
		byKey: make(map[string]*domain.Payment),
		byID:  make(map[string]*domain.Payment),
	}
}

func (f *fakePaymentRepository) InsertPending(ctx context.Context, q domain.Querier, payment *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byKey[payment.IdempotencyKey]; exists {
		return domain.ErrIdempotencyKeyExists
	}
	cp := *payment
	f.byKey[payment.IdempotencyKey] = &cp
	f.byID[payment.ID] = &cp
	return nil
}

func (f *fakePaymentRepository) FindByIdempotencyKey(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byKey[key]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepository) FindByIdempotencyKeyForUpdate(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error) {
	return f.FindByIdempotencyKey(ctx, q, key)
}

func (f *fakePaymentRepository) FindByID(ctx context.Context, q domain.Querier, id string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepository) UpdateOutcome(ctx context.Context, q domain.Querier, payment *domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[payment.ID]; !ok {
		return domain.ErrPaymentNotFound
	}
	cp := *payment
	f.byID[payment.ID] = &cp
	f.byKey[payment.IdempotencyKey] = &cp
	return nil
}

type fakeAuditRepository struct {
	mu      sync.Mutex
	entries []*domain.PaymentAudit
}

func (f *fakeAuditRepository) Create(ctx context.Context, q domain.Querier, audit *domain.PaymentAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	audit.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, audit)
	return nil
}

type fakeOutboxRepository struct {
	mu       sync.Mutex
	messages []*domain.OutboxMessage
}

func (f *fakeOutboxRepository) CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeOutboxRepository) GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	return nil, nil
}

func (f *fakeOutboxRepository) MarkMessageSentTx(ctx context.Context, q domain.Querier, id string) error {
	return nil
}

func (f *fakeOutboxRepository) MarkMessageFailedTx(ctx context.Context, q domain.Querier, id string) error {
	return nil
}

// fakeProcessor lets a test control the processor outcome directly,
// bypassing the bank client entirely.
type fakeProcessor struct {
	paymentType string
	status      domain.PaymentStatus
	err         error
}

func (f *fakeProcessor) Supports(paymentType string) bool {
	return paymentType == f.paymentType
}

func (f *fakeProcessor) Process(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := domain.NewPaymentResponse("", f.status)
	resp.Add("type", f.paymentType)
	return resp, nil
}

func (f *fakeProcessor) MapDetailsToResponse(details map[string]any, response *domain.PaymentResponse) {}

func newTestService(t *testing.T, proc processor.PaymentProcessor) (PaymentService, *fakePaymentRepository) {
	t.Helper()
	payments := newFakePaymentRepository()
	audits := &fakeAuditRepository{}
	outboxRepo := &fakeOutboxRepository{}
	registry := processor.NewRegistry(proc)

	svc := &service{
		db:         nil,
		payments:   payments,
		audits:     audits,
		outboxRepo: outboxRepo,
		registry:   registry,
		topic:      "payment.status-changed",
		logger:     zap.NewNop(),
	}
	return svc, payments
}

func TestHandlePayment_NewKeyAuthorized(t *testing.T) {
	t.Skip("requires a live *sql.DB to exercise BeginTx; see TestMapToResponse and TestFindAndMap for the parts that don't")
}

func TestMapToResponse_CarriesProcessorFields(t *testing.T) {
	proc := &fakeProcessor{paymentType: "CARD", status: domain.PaymentStatusAuthorized}
	svc, payments := newTestService(t, proc)
	s := svc.(*service)

	payment := &domain.Payment{
		ID:             "pay-1",
		Amount:         500,
		Currency:       "USD",
		Status:         domain.PaymentStatusAuthorized,
		IdempotencyKey: "key-1",
		Details:        map[string]any{"type": "CARD", "message": "Success"},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	payments.byID[payment.ID] = payment
	payments.byKey[payment.IdempotencyKey] = payment

	resp, err := s.mapToResponse(payment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.PaymentStatusAuthorized {
		t.Errorf("expected AUTHORIZED, got %s", resp.Status)
	}
	if resp.Message != "Success" {
		t.Errorf("expected message to carry over, got %q", resp.Message)
	}
}

func TestFindAndMap_NotFound(t *testing.T) {
	proc := &fakeProcessor{paymentType: "CARD", status: domain.PaymentStatusAuthorized}
	svc, _ := newTestService(t, proc)
	s := svc.(*service)

	_, err := s.findAndMap(context.Background(), nil, "missing-key")
	if err != domain.ErrPaymentNotFound {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestScrubAndSerialize_MasksSensitiveFields(t *testing.T) {
	req := &domain.PaymentRequest{
		Amount:   100,
		Currency: "USD",
		Type:     "CARD",
		Data: map[string]any{
			"card_number": "4242424242424242",
			"cvv":         "123",
		},
	}

	payload, err := scrubAndSerialize(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(payload, "4242424242424242") {
		t.Error("card number leaked into audit payload")
	}
	if strings.Contains(payload, `"cvv":"123"`) {
		t.Error("cvv leaked into audit payload")
	}
	if !strings.Contains(payload, `"card_number":"****"`) {
		t.Error("expected card_number masked to four stars")
	}
	if !strings.Contains(payload, `"cvv":"***"`) {
		t.Error("expected cvv masked to three stars, not four")
	}
	if strings.Contains(payload, `"type"`) {
		t.Error("audit payload must not carry a top-level type key")
	}
}
