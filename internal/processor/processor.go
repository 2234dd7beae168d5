// Package processor holds the pluggable, payment-type-specific dispatch
// layer: each PaymentProcessor knows how to validate a request of its
// type, call out to whatever rail it represents, and project the stored
// details back into a merchant-safe response.
package processor

import (
	"context"

	"github.com/checkout/payment-gateway/internal/domain"
)

type PaymentProcessor interface {
	// Supports reports whether this processor handles the given
	// payment type (case-insensitive).
	Supports(paymentType string) bool

	// Process validates and executes the payment, returning the
	// processor's full internal response (never merchant-filtered).
	Process(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResponse, error)

	// MapDetailsToResponse projects a persisted details bag into an
	// in-progress merchant response, adding only the fields this
	// processor considers safe to return.
	MapDetailsToResponse(details map[string]any, response *domain.PaymentResponse)
}
