package payments_repo

import (
	"context"

	"github.com/checkout/payment-gateway/internal/domain"
)

// PaymentRepository persists Payment rows. Every method accepts a
// domain.Querier so callers can run inside an in-flight transaction
// (the normal case — the whole process-payment flow is one transaction)
// or directly against the pool (the read-only GetByID path).
type PaymentRepository interface {
	// InsertPending inserts a new row in PENDING status. Returns
	// domain.ErrIdempotencyKeyExists if the idempotency_key unique
	// constraint is violated — the caller should treat that as "someone
	// else is already processing this key" and go read the row instead.
	InsertPending(ctx context.Context, q domain.Querier, payment *domain.Payment) error

	// FindByIdempotencyKey returns domain.ErrPaymentNotFound if no row
	// exists yet for key.
	FindByIdempotencyKey(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error)

	// FindByIdempotencyKeyForUpdate is FindByIdempotencyKey with a
	// row-level lock (SELECT ... FOR UPDATE), used on the replay path
	// so the caller waits for a concurrent writer holding the row to
	// finish rather than racing it.
	FindByIdempotencyKeyForUpdate(ctx context.Context, q domain.Querier, key string) (*domain.Payment, error)

	// FindByID returns domain.ErrPaymentNotFound if id is unknown.
	FindByID(ctx context.Context, q domain.Querier, id string) (*domain.Payment, error)

	// UpdateOutcome moves a PENDING row to its terminal status and
	// stores the processor's details bag. Status transitions are
	// monotonic; callers must not invoke this on an already-terminal row.
	UpdateOutcome(ctx context.Context, q domain.Querier, payment *domain.Payment) error
}
