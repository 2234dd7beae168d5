package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/checkout/payment-gateway/internal/domain"
	paymentsvc "github.com/checkout/payment-gateway/internal/service/payments"
)

var validate = validator.New()

type PaymentHandler struct {
	service paymentsvc.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s paymentsvc.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

// processPaymentRequest is the wire shape of POST /v1/payments/process: a
// flat body where amount/currency/type are typed and every other
// top-level key (card_number, cvv, expiry_month, expiry_year, ...) rides
// into Data verbatim, mirroring the original's @JsonAnySetter bag — it is
// not schema-validated here, only by the selected processor, since its
// shape depends on Type.
type processPaymentRequest struct {
	Amount   int64          `validate:"required,gt=0"`
	Currency string         `validate:"required,len=3"`
	Type     string         `validate:"required"`
	Data     map[string]any
}

// parseProcessPaymentRequest lifts amount/currency/type out of the flat
// body and collects every remaining key into Data, so a field like
// card_number sent at the top level (as the spec's wire format requires)
// is never silently dropped.
func parseProcessPaymentRequest(raw map[string]json.RawMessage) (*processPaymentRequest, error) {
	req := &processPaymentRequest{Data: make(map[string]any, len(raw))}
	for key, value := range raw {
		switch key {
		case "amount":
			if err := json.Unmarshal(value, &req.Amount); err != nil {
				return nil, err
			}
		case "currency":
			if err := json.Unmarshal(value, &req.Currency); err != nil {
				return nil, err
			}
		case "type":
			if err := json.Unmarshal(value, &req.Type); err != nil {
				return nil, err
			}
		default:
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				return nil, err
			}
			req.Data[key] = v
		}
	}
	return req, nil
}

func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	if idempotencyKey == "" {
		writeRejected(w, "X-Idempotency-Key header is required", nil)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeRejected(w, "Request body is not valid JSON", nil)
		return
	}

	req, err := parseProcessPaymentRequest(raw)
	if err != nil {
		writeRejected(w, "Request body is not valid JSON", nil)
		return
	}

	if err := validate.Struct(req); err != nil {
		writeRejected(w, "Validation failed", fieldErrors(err))
		return
	}

	domainReq := &domain.PaymentRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Type:     req.Type,
		Data:     req.Data,
	}

	response, err := h.service.HandlePayment(r.Context(), idempotencyKey, domainReq)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, response.MerchantJSON())
}

func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	response, err := h.service.GetPaymentByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, response.MerchantJSON())
}

// writeError maps the service's error taxonomy onto HTTP status codes.
// Anything not recognized is an internal error: never leak its message
// to the merchant.
func (h *PaymentHandler) writeError(w http.ResponseWriter, err error) {
	var invalidArg *domain.InvalidArgumentError
	var notFound *domain.NotFoundError
	var consistency *domain.ConsistencyError

	switch {
	case errors.As(err, &invalidArg):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "BAD_REQUEST",
			"message": invalidArg.Error(),
		})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "NOT_FOUND",
			"message": notFound.Error(),
		})
	case errors.As(err, &consistency):
		h.logger.Error("payment consistency error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SYSTEM_ERROR",
			"message": "An unexpected error occurred",
		})
	default:
		h.logger.Error("unhandled payment processing error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "SYSTEM_ERROR",
			"message": "An unexpected error occurred",
		})
	}
}

func writeRejected(w http.ResponseWriter, message string, errs map[string]string) {
	body := map[string]any{
		"status":  "REJECTED",
		"message": message,
	}
	if len(errs) > 0 {
		body["errors"] = errs
	}
	writeJSON(w, http.StatusBadRequest, body)
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
