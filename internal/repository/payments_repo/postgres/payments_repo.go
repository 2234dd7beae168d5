package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/checkout/payment-gateway/internal/domain"
)

const uniqueViolationCode = "23505"

type PaymentRepository struct{}

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

func (r *PaymentRepository) InsertPending(ctx context.Context, q domain.Querier, payment *domain.Payment) error {
	details, err := json.Marshal(payment.Details)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}

	query := `
		INSERT INTO payments (id, amount, currency, status, idempotency_key, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = q.ExecContext(ctx, query,
		payment.ID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.IdempotencyKey,
		details,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
			return domain.ErrIdempotencyKeyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error) {
	query := `
		SELECT id, amount, currency, status, idempotency_key, details, created_at, updated_at
		FROM payments
		WHERE idempotency_key = $1
	`
	return r.scanOne(q.QueryRowContext(ctx, query, key))
}

func (r *PaymentRepository) FindByIdempotencyKeyForUpdate(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error) {
	query := `
		SELECT id, amount, currency, status, idempotency_key, details, created_at, updated_at
		FROM payments
		WHERE idempotency_key = $1
		FOR UPDATE
	`
	return r.scanOne(q.QueryRowContext(ctx, query, key))
}

func (r *PaymentRepository) FindByID(ctx context.Context, q domain.Querier, id string) (*domain.Payment, error) {
	query := `
		SELECT id, amount, currency, status, idempotency_key, details, created_at, updated_at
		FROM payments
		WHERE id = $1
	`
	return r.scanOne(q.QueryRowContext(ctx, query, id))
}

func (r *PaymentRepository) UpdateOutcome(ctx context.Context, q domain.Querier, payment *domain.Payment) error {
	details, err := json.Marshal(payment.Details)
	if err != nil {
		return fmt.Errorf("marshal payment details: %w", err)
	}

	query := `
		UPDATE payments
		SET status = $1, details = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := q.ExecContext(ctx, query, payment.Status, details, payment.UpdatedAt, payment.ID)
	if err != nil {
		return fmt.Errorf("update payment outcome: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected for payment update: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) scanOne(row *sql.Row) (*domain.Payment, error) {
	var (
		payment domain.Payment
		details []byte
	)

	err := row.Scan(
		&payment.ID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.IdempotencyKey,
		&details,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &payment.Details); err != nil {
			return nil, fmt.Errorf("unmarshal payment details: %w", err)
		}
	}

	return &payment, nil
}
