package postgres

import (
	"context"

	"github.com/checkout/payment-gateway/internal/domain"
)

type AuditRepository struct{}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Create(ctx context.Context, q domain.Querier, audit *domain.PaymentAudit) error {
	query := `
		INSERT INTO payment_audit_logs (payment_id, idempotency_key, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return q.QueryRowContext(ctx, query,
		audit.PaymentID,
		audit.IdempotencyKey,
		audit.Action,
		audit.Payload,
		audit.Timestamp,
	).Scan(&audit.ID)
}
