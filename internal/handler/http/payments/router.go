package payments_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go.uber.org/zap"

	paymentsvc "github.com/checkout/payment-gateway/internal/service/payments"
)

func RegisterRoutes(r chi.Router, s paymentsvc.PaymentService, l *zap.Logger) {
	handler := NewPaymentHandler(s, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("payments service is healthy"))
		})
	})

	r.Route("/v1/payments", func(r chi.Router) {
		r.Post("/process", handler.ProcessPayment)
		r.Get("/{id}", handler.GetPayment)
	})
}
