package payment

import (
	"context"
	"errors"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeConfig contains configuration for the Stripe provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// Currency for all charges. Default "usd".
	Currency string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return len(c.APIKey) > 7 && c.APIKey[:8] == "sk_test_"
}

// StripeProvider implements Provider with confirmed Stripe Payment Intents.
// Card payments only; other methods should route to the simulator.
type StripeProvider struct {
	cfg StripeConfig
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a Stripe payment provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	stripe.Key = cfg.APIKey
	return &StripeProvider{cfg: cfg}, nil
}

// Charge creates and confirms a payment intent. The client must supply a
// tokenized payment method id in Details["payment_method_id"]. A card
// decline comes back as Success=false; other Stripe errors surface as
// errors.
func (p *StripeProvider) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	methodID := params.Details["payment_method_id"]
	if methodID == "" {
		return nil, domain.Invalid("payment.charge", "payment_method_id is required for card payments")
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(p.cfg.Currency),
		PaymentMethod: stripe.String(methodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Order " + params.OrderNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	piParams.Context = ctx
	piParams.AddMetadata("order_id", params.OrderID)
	piParams.AddMetadata("order_number", params.OrderNumber)
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &ChargeResult{
				Success:       false,
				DeclineReason: stripeErr.Msg,
			}, nil
		}
		return nil, domain.Unavailable(err, "payment.charge", "stripe charge failed")
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return &ChargeResult{
			Success:       false,
			DeclineReason: "payment intent status " + string(pi.Status),
		}, nil
	}

	return &ChargeResult{
		Success:       true,
		TransactionID: pi.ID,
		Gateway:       GatewayStripe,
	}, nil
}

// Refund refunds a captured payment intent, partially when AmountCents is
// set.
func (p *StripeProvider) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	rParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.TransactionID),
	}
	rParams.Context = ctx
	if params.AmountCents > 0 {
		rParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		rParams.AddMetadata("reason", params.Reason)
	}

	r, err := refund.New(rParams)
	if err != nil {
		return nil, domain.Unavailable(err, "payment.refund", "stripe refund failed")
	}

	if r.Status == stripe.RefundStatusFailed {
		return &RefundResult{
			Success:       false,
			FailureReason: string(r.FailureReason),
		}, nil
	}

	return &RefundResult{
		Success:     true,
		RefundID:    r.ID,
		AmountCents: r.Amount,
	}, nil
}
