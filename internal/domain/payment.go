package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending               PaymentStatus = "PENDING"
	PaymentStatusAuthorized            PaymentStatus = "AUTHORIZED"
	PaymentStatusDeclined              PaymentStatus = "DECLINED"
	PaymentStatusPendingReconciliation PaymentStatus = "PENDING_RECONCILIATION"
)

// Payment is the durable record of a merchant payment request. It is
// inserted once, in PENDING status, and mutated exactly once when the
// processor outcome is known — never transitioned away from a terminal
// status afterwards.
type Payment struct {
	ID             string
	Amount         int64
	Currency       string
	Status         PaymentStatus
	IdempotencyKey string
	Details        map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsTerminal reports whether status can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}
