package domain

import "time"

type AuditAction string

const (
	AuditActionRequestReceived  AuditAction = "REQUEST_RECEIVED"
	AuditActionProcessCompleted AuditAction = "PROCESS_COMPLETED"
)

// PaymentAudit is an append-only trail entry. PaymentID is nil for the
// REQUEST_RECEIVED row written before the payment row exists.
type PaymentAudit struct {
	ID             int64
	PaymentID      *string
	IdempotencyKey string
	Action         AuditAction
	Payload        string
	Timestamp      time.Time
}
