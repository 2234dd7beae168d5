package processor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/checkout/payment-gateway/internal/bankclient"
	"github.com/checkout/payment-gateway/internal/domain"
)

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{14,19}$`)
	cvvPattern        = regexp.MustCompile(`^[0-9]{3,4}$`)
	supportedCurrency = map[string]bool{"USD": true, "EUR": true, "GBP": true}
)

// now is overridable in tests so expiry validation is deterministic.
var now = time.Now

// CardProcessor implements PaymentProcessor for payment type "CARD": it
// validates card fields, masks the PAN, calls the bank client, and
// classifies the outcome into the gateway's three-state status model.
type CardProcessor struct {
	bank *bankclient.Client
}

func NewCardProcessor(bank *bankclient.Client) *CardProcessor {
	return &CardProcessor{bank: bank}
}

func (p *CardProcessor) Supports(paymentType string) bool {
	return strings.EqualFold(paymentType, "CARD")
}

func (p *CardProcessor) Process(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentResponse, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	cardNumber := fmt.Sprintf("%v", req.Get("card_number"))
	cvv := fmt.Sprintf("%v", req.Get("cvv"))
	expiryMonth, _ := toInt(req.Get("expiry_month"))
	expiryYear, _ := toInt(req.Get("expiry_year"))
	expiry := fmt.Sprintf("%02d/%d", expiryMonth, expiryYear)

	bankReq := bankclient.Request{
		"amount":      req.Amount,
		"currency":    req.Currency,
		"card_number": cardNumber,
		"expiry_date": expiry,
		"cvv":         cvv,
	}

	bankResp, err := p.bank.Process(ctx, bankReq)
	if err != nil {
		return nil, fmt.Errorf("call bank client: %w", err)
	}

	status, message := classify(bankResp)

	response := domain.NewPaymentResponse("", status)
	response.Message = message
	response.Add("type", "CARD")
	response.Add("masked_card_number", maskCardNumber(cardNumber))
	response.Add("card_type", detectCardType(cardNumber))
	response.Add("expiry_month", expiryMonth)
	response.Add("expiry_year", expiryYear)
	response.Add("amount", req.Amount)
	response.Add("currency", req.Currency)
	if code := bankResp.String("authorization_code"); code != "" {
		response.Add("authorization_code", code)
	}

	return response, nil
}

// classify implements the precise three-outcome mapping §4.2 specifies:
// indeterminate beats missing-authorized beats authorized beats declined.
func classify(resp bankclient.Response) (domain.PaymentStatus, string) {
	indeterminate, _ := resp.Bool("indeterminate")
	authorized, present := resp.Bool("authorized")

	switch {
	case indeterminate:
		return domain.PaymentStatusPendingReconciliation, "Bank timeout"
	case !present:
		return domain.PaymentStatusPendingReconciliation, "Malformed bank response"
	case authorized:
		return domain.PaymentStatusAuthorized, "Success"
	default:
		return domain.PaymentStatusDeclined, "Declined"
	}
}

func (p *CardProcessor) validate(req *domain.PaymentRequest) error {
	if !supportedCurrency[req.Currency] {
		return domain.NewInvalidArgumentError("Unsupported currency: %s. We only support [USD, EUR, GBP]", req.Currency)
	}

	cardNumberVal := req.Get("card_number")
	if cardNumberVal == nil {
		return domain.NewInvalidArgumentError("Card number is required.")
	}
	cardNumber := fmt.Sprintf("%v", cardNumberVal)
	if !cardNumberPattern.MatchString(cardNumber) {
		return domain.NewInvalidArgumentError("Card number must be 14-19 numeric characters long.")
	}

	cvvVal := req.Get("cvv")
	if cvvVal == nil {
		return domain.NewInvalidArgumentError("CVV is required.")
	}
	cvv := fmt.Sprintf("%v", cvvVal)
	if !cvvPattern.MatchString(cvv) {
		return domain.NewInvalidArgumentError("CVV must be 3-4 numeric characters long.")
	}

	monthVal := req.Get("expiry_month")
	yearVal := req.Get("expiry_year")
	if monthVal == nil || yearVal == nil {
		return domain.NewInvalidArgumentError("Expiry month and year are required.")
	}

	month, okMonth := toInt(monthVal)
	year, okYear := toInt(yearVal)
	if !okMonth || !okYear {
		return domain.NewInvalidArgumentError("Expiry month and year must be numbers.")
	}

	if month < 1 || month > 12 {
		return domain.NewInvalidArgumentError("Expiry month must be between 1 and 12.")
	}

	current := now()
	if year < current.Year() || (year == current.Year() && month < int(current.Month())) {
		return domain.NewInvalidArgumentError("Card expiry date must be in the future.")
	}

	return nil
}

func (p *CardProcessor) MapDetailsToResponse(details map[string]any, response *domain.PaymentResponse) {
	if details == nil {
		return
	}

	maskedCard := fmt.Sprintf("%v", details["masked_card_number"])
	if len(maskedCard) >= 4 {
		response.Add("last_four_card_digits", maskedCard[len(maskedCard)-4:])
	}

	response.Add("expiry_month", details["expiry_month"])
	response.Add("expiry_year", details["expiry_year"])
}

func detectCardType(pan string) string {
	switch {
	case strings.HasPrefix(pan, "4"):
		return "VISA"
	case strings.HasPrefix(pan, "5"):
		return "MASTERCARD"
	default:
		return "UNKNOWN"
	}
}

func maskCardNumber(pan string) string {
	if len(pan) < 4 {
		return "****"
	}
	return "**** **** **** " + pan[len(pan)-4:]
}

// toInt accepts an int, a float64 (the shape encoding/json decodes JSON
// numbers into), or a numeric string — mirroring the source's
// accept-integer-or-numeric-string parsing.
func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
