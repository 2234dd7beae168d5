package domain

// PaymentResponse is an open bag of fields, used both as the processor's
// full internal response (persisted into Payment.Details) and, after
// projection, as the merchant-facing response body. A single type plays
// both roles in the source system; here Add/Get give it the same
// dynamic-bag behaviour without reflection.
type PaymentResponse struct {
	PaymentID string
	Status    PaymentStatus
	Message   string
	data      map[string]any
}

func NewPaymentResponse(paymentID string, status PaymentStatus) *PaymentResponse {
	return &PaymentResponse{
		PaymentID: paymentID,
		Status:    status,
		data:      make(map[string]any),
	}
}

func (r *PaymentResponse) Add(key string, value any) {
	if value == nil {
		return
	}
	r.data[key] = value
}

func (r *PaymentResponse) Get(key string) any {
	return r.data[key]
}

func (r *PaymentResponse) Has(key string) bool {
	_, ok := r.data[key]
	return ok
}

// Details returns the full bag plus message, ready to persist as
// Payment.Details. The returned map is a copy.
func (r *PaymentResponse) Details() map[string]any {
	cp := make(map[string]any, len(r.data)+1)
	for k, v := range r.data {
		cp[k] = v
	}
	if r.Message != "" {
		cp["message"] = r.Message
	}
	return cp
}

// MerchantJSON flattens the response into the wire shape §6 specifies.
func (r *PaymentResponse) MerchantJSON() map[string]any {
	out := make(map[string]any, len(r.data)+3)
	for k, v := range r.data {
		out[k] = v
	}
	out["payment_id"] = r.PaymentID
	out["status"] = string(r.Status)
	if r.Message != "" {
		out["message"] = r.Message
	}
	return out
}
