// Package payments implements the gateway's core payment-processing
// use case: validate, dispatch to a processor, persist the outcome, and
// keep every step idempotent under concurrent duplicate submissions.
package payments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/checkout/payment-gateway/internal/domain"
	"github.com/checkout/payment-gateway/internal/outbox"
	"github.com/checkout/payment-gateway/internal/processor"
	"github.com/checkout/payment-gateway/internal/repository/audit_repo"
	"github.com/checkout/payment-gateway/internal/repository/outbox_repo"
	"github.com/checkout/payment-gateway/internal/repository/payments_repo"
	"github.com/checkout/payment-gateway/internal/util"
)

// maskedKeys are scrubbed out of the payload an audit row stores —
// never persist raw PAN or CVV, even in the trail meant to diagnose
// failures. Each key has its own mask width.
var maskedKeys = map[string]string{
	"card_number": "****",
	"cvv":         "***",
}

// PaymentService is the single entry point merchants' requests flow
// through. It owns the idempotency protocol, the processor dispatch,
// and the audit/outbox side effects — everything except the
// REQUEST_RECEIVED audit row in a single serializable transaction per
// request.
type PaymentService interface {
	HandlePayment(ctx context.Context, idempotencyKey string, req *domain.PaymentRequest) (*domain.PaymentResponse, error)
	GetPaymentByID(ctx context.Context, id string) (*domain.PaymentResponse, error)
}

type service struct {
	db         *sql.DB
	payments   payments_repo.PaymentRepository
	audits     audit_repo.AuditRepository
	outboxRepo outbox_repo.OutboxRepository
	registry   *processor.Registry
	logger     *zap.Logger
	topic      string
}

func NewService(
	db *sql.DB,
	payments payments_repo.PaymentRepository,
	audits audit_repo.AuditRepository,
	outboxRepo outbox_repo.OutboxRepository,
	registry *processor.Registry,
	topic string,
	logger *zap.Logger,
) PaymentService {
	return &service{
		db:         db,
		payments:   payments,
		audits:     audits,
		outboxRepo: outboxRepo,
		registry:   registry,
		topic:      topic,
		logger:     logger,
	}
}

// HandlePayment implements the full idempotent-process flow: write a
// REQUEST_RECEIVED audit row outside the main transaction (it must
// survive even if everything after it fails), then run insert-or-replay
// plus processor dispatch plus outcome persistence as one serializable
// transaction so a concurrent duplicate submission either finds nothing
// to do or blocks on the row lock until the first submission finishes.
func (s *service) HandlePayment(ctx context.Context, idempotencyKey string, req *domain.PaymentRequest) (*domain.PaymentResponse, error) {
	s.writeRequestReceivedAudit(ctx, idempotencyKey, req)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	response, err := s.findAndMap(ctx, tx, idempotencyKey)
	if err == nil {
		tx.Commit()
		return response, nil
	}
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		tx.Rollback()
		return nil, err
	}

	payment := &domain.Payment{
		ID:             util.GenerateUUID(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: idempotencyKey,
		Details:        map[string]any{},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.payments.InsertPending(ctx, tx, payment); err != nil {
		if errors.Is(err, domain.ErrIdempotencyKeyExists) {
			// Lost the race: someone else inserted between our lookup
			// and our insert. Replay under a row lock so we wait for
			// their write instead of returning a stale PENDING view.
			response, replayErr := s.findAndMapLocked(ctx, tx, idempotencyKey)
			if replayErr != nil {
				tx.Rollback()
				return nil, replayErr
			}
			tx.Commit()
			return response, nil
		}
		tx.Rollback()
		return nil, fmt.Errorf("insert pending payment: %w", err)
	}

	response, procErr := s.executeAndFinalize(ctx, tx, payment, req)
	if procErr != nil {
		tx.Rollback()
		return nil, procErr
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return response, nil
}

// executeAndFinalize dispatches to the matching processor, persists the
// terminal status and details, writes the completion audit row, and
// enqueues an outbox event — all inside the caller's transaction.
func (s *service) executeAndFinalize(ctx context.Context, tx *sql.Tx, payment *domain.Payment, req *domain.PaymentRequest) (*domain.PaymentResponse, error) {
	proc, ok := s.registry.Select(req.Type)
	if !ok {
		return nil, domain.NewInvalidArgumentError("Unsupported payment type: %s", req.Type)
	}

	procResponse, err := proc.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	payment.Status = procResponse.Status
	payment.Details = procResponse.Details()
	payment.UpdatedAt = time.Now()

	if err := s.payments.UpdateOutcome(ctx, tx, payment); err != nil {
		return nil, fmt.Errorf("persist payment outcome: %w", err)
	}

	procResponse.PaymentID = payment.ID
	s.writeProcessCompletedAudit(ctx, tx, payment, procResponse)
	s.enqueueStatusChangedEvent(ctx, tx, payment)

	// Never return the processor's full internal response to the
	// caller — it carries fields (type, card_type, masked_card_number,
	// authorization_code) the merchant response must not have, and is
	// missing fields (last_four_card_digits) it must. Project the saved
	// row the same way the replay path does.
	return s.mapToResponse(payment)
}

// findAndMap looks up an existing row by idempotency key under a row
// lock and, if found, projects it into a merchant response — the replay
// path for a key seen before. The lock makes it wait for any writer still
// holding the row.
func (s *service) findAndMap(ctx context.Context, q domain.Querier, idempotencyKey string) (*domain.PaymentResponse, error) {
	payment, err := s.payments.FindByIdempotencyKeyForUpdate(ctx, q, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return s.mapToResponse(payment)
}

// findAndMapLocked is the locked replay read used once we know a
// concurrent writer just won the insert race and may still be
// mid-processing. The unique violation proves the row exists, so not
// finding it is a ConsistencyError rather than ErrPaymentNotFound.
func (s *service) findAndMapLocked(ctx context.Context, q domain.Querier, idempotencyKey string) (*domain.PaymentResponse, error) {
	payment, err := s.payments.FindByIdempotencyKeyForUpdate(ctx, q, idempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.NewConsistencyError("payment with idempotency key %s vanished after a unique violation", idempotencyKey)
		}
		return nil, err
	}
	return s.mapToResponse(payment)
}

func (s *service) mapToResponse(payment *domain.Payment) (*domain.PaymentResponse, error) {
	response := domain.NewPaymentResponse(payment.ID, payment.Status)

	if msg, ok := payment.Details["message"].(string); ok {
		response.Message = msg
	}

	paymentType, _ := payment.Details["type"].(string)
	proc, ok := s.registry.Select(paymentType)
	if ok {
		proc.MapDetailsToResponse(payment.Details, response)
	}

	response.Add("amount", payment.Amount)
	response.Add("currency", payment.Currency)

	return response, nil
}

func (s *service) GetPaymentByID(ctx context.Context, id string) (*domain.PaymentResponse, error) {
	payment, err := s.payments.FindByID(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.NewNotFoundError("Payment not found: %s", id)
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return s.mapToResponse(payment)
}

// writeRequestReceivedAudit runs in its own short transaction, outside
// the main flow, so a request is always traceable even if everything
// downstream blows up. Failures here are logged and swallowed, never
// surfaced to the merchant.
func (s *service) writeRequestReceivedAudit(ctx context.Context, idempotencyKey string, req *domain.PaymentRequest) {
	payload, err := scrubAndSerialize(req)
	if err != nil {
		s.logger.Warn("failed to serialize request for audit", zap.Error(err))
		return
	}

	audit := &domain.PaymentAudit{
		IdempotencyKey: idempotencyKey,
		Action:         domain.AuditActionRequestReceived,
		Payload:        payload,
		Timestamp:      time.Now(),
	}

	if err := s.audits.Create(ctx, s.db, audit); err != nil {
		s.logger.Warn("failed to write request-received audit", zap.String("idempotency_key", idempotencyKey), zap.Error(err))
	}
}

func (s *service) writeProcessCompletedAudit(ctx context.Context, q domain.Querier, payment *domain.Payment, response *domain.PaymentResponse) {
	payload, err := json.Marshal(response.MerchantJSON())
	if err != nil {
		s.logger.Warn("failed to serialize response for audit", zap.String("payment_id", payment.ID), zap.Error(err))
		return
	}

	paymentID := payment.ID
	audit := &domain.PaymentAudit{
		PaymentID:      &paymentID,
		IdempotencyKey: payment.IdempotencyKey,
		Action:         domain.AuditActionProcessCompleted,
		Payload:        string(payload),
		Timestamp:      time.Now(),
	}

	if err := s.audits.Create(ctx, q, audit); err != nil {
		s.logger.Warn("failed to write process-completed audit", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

// enqueueStatusChangedEvent appends a payment.status-changed message to
// the outbox in the same transaction as the status update, so the event
// exists if and only if the commit that produced it does. A background
// publisher (internal/outbox) drains these to Kafka afterward.
func (s *service) enqueueStatusChangedEvent(ctx context.Context, q domain.Querier, payment *domain.Payment) {
	payload, err := outbox.PreparePaymentStatusChangedPayload(payment, time.Now())
	if err != nil {
		s.logger.Warn("failed to prepare outbox payload", zap.String("payment_id", payment.ID), zap.Error(err))
		return
	}

	msg := &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   payment.ID,
		AggregateType: "payment",
		MessageType:   "payment.status-changed",
		Topic:         s.topic,
		Key:           payment.ID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     time.Now(),
	}

	if err := s.outboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
		s.logger.Warn("failed to enqueue outbox message", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

// scrubAndSerialize renders a request to JSON with sensitive fields
// replaced by a fixed mask, so audit payloads never carry raw card data.
func scrubAndSerialize(req *domain.PaymentRequest) (string, error) {
	scrubbed := req.DataCopy()
	for key := range scrubbed {
		if mask, ok := maskedKeys[key]; ok {
			scrubbed[key] = mask
		}
	}

	out := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"data":     scrubbed,
	}

	bytes, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
