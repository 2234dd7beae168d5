package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/checkout/payment-gateway/internal/domain"
)

type OutboxRepository struct{}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (id, aggregate_id, aggregate_type, message_type, topic, key_value, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		msg.ID,
		msg.AggregateID,
		msg.AggregateType,
		msg.MessageType,
		msg.Topic,
		msg.Key,
		msg.Payload,
		msg.Status,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

func (r *OutboxRepository) GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	query := `
		SELECT id, aggregate_id, aggregate_type, message_type, topic, key_value, payload, status, created_at, sent_at
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.QueryContext(ctx, query, domain.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		msg := domain.OutboxMessage{}
		var sentAt sql.NullTime
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateID,
			&msg.AggregateType,
			&msg.MessageType,
			&msg.Topic,
			&msg.Key,
			&msg.Payload,
			&msg.Status,
			&msg.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		if sentAt.Valid {
			msg.SentAt = &sentAt.Time
		}
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox messages: %w", err)
	}

	return messages, nil
}

func (r *OutboxRepository) MarkMessageSentTx(ctx context.Context, q domain.Querier, id string) error {
	return r.updateStatus(ctx, q, id, domain.OutboxStatusSent, true)
}

func (r *OutboxRepository) MarkMessageFailedTx(ctx context.Context, q domain.Querier, id string) error {
	return r.updateStatus(ctx, q, id, domain.OutboxStatusFailed, false)
}

func (r *OutboxRepository) updateStatus(ctx context.Context, q domain.Querier, id string, status domain.OutboxMessageStatus, stampSentAt bool) error {
	var sentAt sql.NullTime
	if stampSentAt {
		sentAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	query := `UPDATE outbox_messages SET status = $1, sent_at = $2 WHERE id = $3`
	res, err := q.ExecContext(ctx, query, status, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update outbox message %s status: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("outbox message %s not found for status update", id)
	}
	return nil
}
