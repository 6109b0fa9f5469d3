package handler

import (
	"log/slog"
	"net/http"

	"github.com/fjellmark/njord/internal/service"
)

// PaymentHandler serves the standalone payment endpoints.
type PaymentHandler struct {
	payments service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(payments service.PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{payments: payments, logger: logger}
}

type processPaymentRequest struct {
	OrderID        string            `json:"orderId" validate:"required"`
	PaymentDetails map[string]string `json:"paymentDetails"`
}

type refundPaymentRequest struct {
	OrderID     string `json:"orderId" validate:"required"`
	AmountCents int64  `json:"amountCents" validate:"gte=0"`
	Reason      string `json:"reason" validate:"required"`
}

// Process handles POST /api/payments/process.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req processPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	order, err := h.payments.ProcessPayment(r.Context(), req.OrderID, req.PaymentDetails)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Payment processed successfully",
		"transactionId": order.Payment.TransactionID,
		"order":         order,
	})
}

// Refund handles POST /api/payments/refund.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req refundPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	outcome, err := h.payments.RefundPayment(r.Context(), req.OrderID, req.AmountCents, req.Reason)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Refund processed successfully",
		"refundId": outcome.RefundID,
		"order":    outcome.Order,
	})
}

// GetByOrder handles GET /api/payments/order/{orderId}.
func (h *PaymentHandler) GetByOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.payments.GetPaymentDetail(r.Context(), r.PathValue("orderId"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}
