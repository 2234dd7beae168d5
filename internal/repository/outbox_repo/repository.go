package outbox_repo

import (
	"context"

	"github.com/checkout/payment-gateway/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, q domain.Querier, msg *domain.OutboxMessage) error
	GetPendingMessages(ctx context.Context, q domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessageSentTx(ctx context.Context, q domain.Querier, id string) error
	MarkMessageFailedTx(ctx context.Context, q domain.Querier, id string) error
}
