// Package payment defines the charge/refund provider contract used by
// checkout, plus a gateway simulator, a Stripe implementation, and a mock
// for tests.
package payment

import (
	"context"

	"github.com/fjellmark/njord/internal/domain"
)

// Gateway display names per payment method.
const (
	GatewayStripe  = "Stripe"
	GatewayPayPal  = "PayPal"
	GatewayACH     = "ACH"
	GatewayCOD     = "COD"
	GatewayUnknown = "Unknown"
)

// GatewayFor maps a payment method to the gateway that would process it.
func GatewayFor(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodCreditCard, domain.PaymentMethodDebitCard:
		return GatewayStripe
	case domain.PaymentMethodPayPal:
		return GatewayPayPal
	case domain.PaymentMethodBankTransfer:
		return GatewayACH
	case domain.PaymentMethodCashOnDelivery:
		return GatewayCOD
	}
	return GatewayUnknown
}

// ChargeParams describes a single charge attempt.
type ChargeParams struct {
	OrderID     string
	OrderNumber string
	AmountCents int64
	Method      domain.PaymentMethod

	// Details carries gateway-specific fields from the client, such as a
	// tokenized payment method id.
	Details map[string]string

	// IdempotencyKey makes a repeated attempt for the same key return the
	// original outcome instead of charging twice.
	IdempotencyKey string
}

// ChargeResult is the outcome of a charge attempt. A declined charge is a
// successful call with Success=false; transport and gateway errors surface
// as an error return instead.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Gateway       string
	DeclineReason string
}

// RefundParams describes a refund against a previously captured charge.
type RefundParams struct {
	OrderID       string
	TransactionID string
	AmountCents   int64
	Reason        string
}

// RefundResult is the outcome of a refund attempt.
type RefundResult struct {
	Success       bool
	RefundID      string
	AmountCents   int64
	FailureReason string
}

// Provider is the payment gateway contract. Both calls are at-most-once
// attempts with no automatic retry; callers that retry must supply the same
// idempotency key. Implementations must honor context cancellation so a
// caller-supplied deadline bounds the call.
type Provider interface {
	Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error)
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
}
