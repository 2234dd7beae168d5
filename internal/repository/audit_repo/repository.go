package audit_repo

import (
	"context"

	"github.com/checkout/payment-gateway/internal/domain"
)

// AuditRepository is an append-only trail of PaymentAudit rows. There is
// no update or delete — once written, an entry stands.
type AuditRepository interface {
	Create(ctx context.Context, q domain.Querier, audit *domain.PaymentAudit) error
}
