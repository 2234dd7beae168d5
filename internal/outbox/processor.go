// Package outbox drains pending rows written by the payment service
// inside its own transaction and publishes them to Kafka, giving
// downstream reconciliation tooling a feed of payment status changes
// without coupling the request path to Kafka's availability. A message
// whose publish fails is marked FAILED and is not polled again.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/checkout/payment-gateway/internal/domain"
	kafkaInfra "github.com/checkout/payment-gateway/internal/infrastructure/kafka"
	"github.com/checkout/payment-gateway/internal/repository/outbox_repo"
)

const batchSize = 10

type Processor struct {
	db            *sql.DB
	outboxRepo    outbox_repo.OutboxRepository
	kafkaProducer kafkaInfra.Producer
	pollInterval  time.Duration
	pollTimeout   time.Duration
	logger        *zap.Logger
	shutdownOnce  sync.Once
	stop          chan struct{}
	done          chan struct{}
}

func NewProcessor(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	kafkaProducer kafkaInfra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:            db,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		logger:        logger,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("starting outbox processor")
	ticker := time.NewTicker(p.pollInterval)

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.processOutboxMessages(ctx)
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Processor) Stop() {
	p.shutdownOnce.Do(func() {
		close(p.stop)
	})
	<-p.done
	p.logger.Info("outbox processor stopped")
}

func (p *Processor) processOutboxMessages(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(queryCtx, nil)
	if err != nil {
		p.logger.Error("failed to begin transaction for outbox poll", zap.Error(err))
		return
	}

	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, batchSize)
	if err != nil {
		tx.Rollback()
		p.logger.Error("failed to get pending outbox messages", zap.Error(err))
		return
	}
	tx.Commit()

	if len(messages) == 0 {
		return
	}

	p.logger.Debug("found pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		p.publishOne(ctx, msg)
	}
}

func (p *Processor) publishOne(ctx context.Context, msg domain.OutboxMessage) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		p.logger.Error("failed to begin transaction for outbox message", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	if err := p.kafkaProducer.Produce(ctx, msg.Key, msg.Topic, msg.Payload); err != nil {
		p.logger.Error("failed to publish outbox message to kafka",
			zap.String("message_id", msg.ID), zap.String("topic", msg.Topic), zap.Error(err))
		if markErr := p.outboxRepo.MarkMessageFailedTx(ctx, tx, msg.ID); markErr != nil {
			p.logger.Error("failed to mark outbox message failed", zap.String("message_id", msg.ID), zap.Error(markErr))
		}
		tx.Commit()
		return
	}

	if err := p.outboxRepo.MarkMessageSentTx(ctx, tx, msg.ID); err != nil {
		p.logger.Error("failed to mark outbox message sent", zap.String("message_id", msg.ID), zap.Error(err))
		tx.Rollback()
		return
	}

	if err := tx.Commit(); err != nil {
		p.logger.Error("failed to commit outbox message status update", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	p.logger.Info("outbox message published", zap.String("message_id", msg.ID), zap.String("topic", msg.Topic))
}

// statusChangedEvent is the wire shape published for every payment
// status transition — the payload downstream reconciliation tooling
// consumes from the configured topic.
type statusChangedEvent struct {
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

func PreparePaymentStatusChangedPayload(payment *domain.Payment, eventTime time.Time) ([]byte, error) {
	event := statusChangedEvent{
		PaymentID: payment.ID,
		Status:    string(payment.Status),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Timestamp: eventTime,
	}
	return json.Marshal(event)
}
