package processor

import (
	"context"
	"testing"
	"time"

	"github.com/checkout/payment-gateway/internal/bankclient"
	"github.com/checkout/payment-gateway/internal/domain"
)

func validCardRequest() *domain.PaymentRequest {
	return &domain.PaymentRequest{
		Amount:   1000,
		Currency: "USD",
		Type:     "CARD",
		Data: map[string]any{
			"card_number":  "4242424242424242",
			"cvv":          "123",
			"expiry_month": float64(12),
			"expiry_year":  float64(2030),
		},
	}
}

func TestCardProcessor_Supports(t *testing.T) {
	p := NewCardProcessor(nil)

	if !p.Supports("card") {
		t.Error("expected case-insensitive match for 'card'")
	}
	if !p.Supports("CARD") {
		t.Error("expected match for 'CARD'")
	}
	if p.Supports("BANK_TRANSFER") {
		t.Error("did not expect match for unrelated type")
	}
}

func TestCardProcessor_Validate_MissingCardNumber(t *testing.T) {
	p := NewCardProcessor(nil)
	req := validCardRequest()
	delete(req.Data, "card_number")

	_, err := p.Process(context.Background(), req)

	var invalidArg *domain.InvalidArgumentError
	if err == nil {
		t.Fatal("expected error for missing card number")
	}
	if !isInvalidArgument(err, &invalidArg) {
		t.Errorf("expected InvalidArgumentError, got %T: %v", err, err)
	}
}

func TestCardProcessor_Validate_BadCardNumberLength(t *testing.T) {
	p := NewCardProcessor(nil)
	req := validCardRequest()
	req.Data["card_number"] = "123"

	_, err := p.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for short card number")
	}
}

func TestCardProcessor_Validate_UnsupportedCurrency(t *testing.T) {
	p := NewCardProcessor(nil)
	req := validCardRequest()
	req.Currency = "JPY"

	_, err := p.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}

func TestCardProcessor_Validate_ExpiredCard(t *testing.T) {
	originalNow := now
	now = func() time.Time { return time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { now = originalNow }()

	p := NewCardProcessor(nil)
	req := validCardRequest()
	req.Data["expiry_month"] = float64(1)
	req.Data["expiry_year"] = float64(2030)

	_, err := p.Process(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for expired card")
	}
}

func TestClassify_Authorized(t *testing.T) {
	resp := bankclient.Response{"authorized": true, "authorization_code": "ABC123"}
	status, message := classify(resp)
	if status != domain.PaymentStatusAuthorized {
		t.Errorf("expected AUTHORIZED, got %s", status)
	}
	if message != "Success" {
		t.Errorf("expected Success message, got %s", message)
	}
}

func TestClassify_Declined(t *testing.T) {
	resp := bankclient.Response{"authorized": false}
	status, _ := classify(resp)
	if status != domain.PaymentStatusDeclined {
		t.Errorf("expected DECLINED, got %s", status)
	}
}

func TestClassify_Indeterminate(t *testing.T) {
	resp := bankclient.Response{"authorized": false, "indeterminate": true}
	status, _ := classify(resp)
	if status != domain.PaymentStatusPendingReconciliation {
		t.Errorf("expected PENDING_RECONCILIATION, got %s", status)
	}
}

func TestClassify_MalformedResponse(t *testing.T) {
	resp := bankclient.Response{}
	status, _ := classify(resp)
	if status != domain.PaymentStatusPendingReconciliation {
		t.Errorf("expected PENDING_RECONCILIATION for missing authorized field, got %s", status)
	}
}

func TestMaskCardNumber(t *testing.T) {
	masked := maskCardNumber("4242424242424242")
	if masked != "**** **** **** 4242" {
		t.Errorf("unexpected mask: %s", masked)
	}
}

func TestDetectCardType(t *testing.T) {
	if detectCardType("4242424242424242") != "VISA" {
		t.Error("expected VISA for 4-prefixed PAN")
	}
	if detectCardType("5555555555554444") != "MASTERCARD" {
		t.Error("expected MASTERCARD for 5-prefixed PAN")
	}
	if detectCardType("6011111111111117") != "UNKNOWN" {
		t.Error("expected UNKNOWN for unrecognized prefix")
	}
}

func isInvalidArgument(err error, target **domain.InvalidArgumentError) bool {
	v, ok := err.(*domain.InvalidArgumentError)
	if ok {
		*target = v
	}
	return ok
}
