package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/payment"
	"github.com/fjellmark/njord/internal/pricing"
	"github.com/fjellmark/njord/internal/stock"
	"github.com/fjellmark/njord/internal/telemetry"
	"github.com/google/uuid"
)

// Compensation reasons recorded on cancelled orders.
const (
	reasonStockReservationFailed = "stock reservation failed"
	reasonPaymentDeclined        = "payment declined"
	reasonPaymentFailed          = "payment failed"
)

// DefaultPaymentTimeout bounds the charge call when the caller's context
// carries no deadline.
const DefaultPaymentTimeout = 30 * time.Second

// CheckoutService turns a cart into a paid order.
type CheckoutService interface {
	// PlaceOrder runs the checkout saga: validate cart, create the order,
	// reserve stock, capture payment, clear the cart. Any failed step
	// triggers the matching compensation before the error is returned.
	PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error)
}

// PlaceOrderParams contains everything a checkout needs beyond the cart.
type PlaceOrderParams struct {
	UserID          string
	ShippingAddress domain.Address
	// BillingAddress defaults to the shipping address when nil.
	BillingAddress *domain.Address
	PaymentMethod  domain.PaymentMethod
	ShippingMethod string
	// PaymentDetails carries gateway-specific fields, such as a tokenized
	// payment method id.
	PaymentDetails map[string]string
	Notes          string
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	carts          domain.CartStore
	orders         domain.OrderStore
	ledger         stock.Ledger
	payments       payment.Provider
	pricer         *pricing.Calculator
	events         events.Publisher
	metrics        *telemetry.CheckoutMetrics
	logger         *slog.Logger
	paymentTimeout time.Duration

	// userLocks serializes checkouts per user so two concurrent attempts
	// cannot both validate against the same cart snapshot.
	userLocks sync.Map // userID -> *sync.Mutex
}

// NewCheckoutService creates a CheckoutService instance. metrics may be nil;
// a zero paymentTimeout falls back to DefaultPaymentTimeout.
func NewCheckoutService(
	carts domain.CartStore,
	orders domain.OrderStore,
	ledger stock.Ledger,
	payments payment.Provider,
	pricer *pricing.Calculator,
	publisher events.Publisher,
	metrics *telemetry.CheckoutMetrics,
	logger *slog.Logger,
	paymentTimeout time.Duration,
) CheckoutService {
	if paymentTimeout <= 0 {
		paymentTimeout = DefaultPaymentTimeout
	}
	return &checkoutService{
		carts:          carts,
		orders:         orders,
		ledger:         ledger,
		payments:       payments,
		pricer:         pricer,
		events:         publisher,
		metrics:        metrics,
		logger:         logger,
		paymentTimeout: paymentTimeout,
	}
}

// PlaceOrder executes the saga under the user's checkout lock.
func (s *checkoutService) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, error) {
	start := time.Now()

	mu := s.lockFor(params.UserID)
	mu.Lock()
	defer mu.Unlock()

	order, outcome, err := s.placeOrder(ctx, params)
	s.metrics.ObserveCheckout(outcome, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveOrderValue(order.Pricing.TotalCents)
	return order, nil
}

func (s *checkoutService) placeOrder(ctx context.Context, params PlaceOrderParams) (*domain.Order, string, error) {
	logger := s.logger.With(slog.String("user_id", params.UserID))

	if !domain.ValidPaymentMethod(params.PaymentMethod) {
		return nil, telemetry.OutcomeValidationFailed,
			domain.Invalid("checkout.placeOrder", "unknown payment method: "+string(params.PaymentMethod))
	}
	if !pricing.ValidMethod(params.ShippingMethod) {
		return nil, telemetry.OutcomeValidationFailed,
			domain.Invalid("checkout.placeOrder", "unknown shipping method: "+params.ShippingMethod)
	}

	// Step 1: validate. No side effects before this passes.
	cart, err := s.carts.Get(ctx, params.UserID)
	if err != nil {
		// A user who never touched their cart has no row yet; that is an
		// empty cart, not a missing resource.
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil, telemetry.OutcomeEmptyCart, domain.ErrEmptyCart
		}
		return nil, telemetry.OutcomeInternalError, err
	}
	if cart.IsEmpty() {
		return nil, telemetry.OutcomeEmptyCart, domain.ErrEmptyCart
	}

	validation, err := validateCart(ctx, cart, s.ledger)
	if err != nil {
		return nil, telemetry.OutcomeInternalError, err
	}
	if !validation.IsValid {
		logger.InfoContext(ctx, "checkout blocked by cart validation",
			slog.Int("discrepancies", len(validation.Discrepancies)))
		return nil, telemetry.OutcomeValidationFailed,
			&domain.ValidationFailedError{Discrepancies: validation.Discrepancies}
	}

	// Step 2: price and create. The persisted pending order is the saga's
	// durability checkpoint.
	lines := orderLinesFromCart(cart)
	shippingCents, taxCents, estimatedDelivery := s.pricer.Quote(
		lines, params.ShippingMethod, params.ShippingAddress.State, time.Now().UTC())

	billing := params.ShippingAddress
	if params.BillingAddress != nil {
		billing = *params.BillingAddress
	}

	order := domain.NewOrder(uuid.New().String(), generateOrderNumber(), domain.NewOrderParams{
		UserID:            params.UserID,
		Lines:             lines,
		TaxCents:          taxCents,
		ShippingCents:     shippingCents,
		ShippingAddress:   params.ShippingAddress,
		BillingAddress:    billing,
		PaymentMethod:     params.PaymentMethod,
		ShippingMethod:    params.ShippingMethod,
		EstimatedDelivery: estimatedDelivery,
		Notes:             params.Notes,
	})

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, telemetry.OutcomeInternalError, err
	}
	logger = logger.With(slog.String("order_id", order.ID), slog.String("order_number", order.OrderNumber))
	logger.InfoContext(ctx, "order created", slog.Int64("total_cents", order.Pricing.TotalCents))
	s.publish(ctx, logger, events.TypeOrderCreated, order, "")

	// Step 3: reserve inventory. Not atomic across lines; on a partial
	// failure, re-add exactly what was already subtracted.
	reserved := 0
	for i, line := range order.Lines {
		if _, err := s.ledger.AdjustStock(ctx, line.ProductID, line.Quantity, stock.OpSubtract); err != nil {
			logger.ErrorContext(ctx, "stock reservation failed",
				slog.String("product_id", line.ProductID),
				slog.Int("line", i),
				slog.String("error", err.Error()))
			s.restoreStock(ctx, logger, order.Lines[:reserved])
			s.cancelOrder(ctx, logger, order, reasonStockReservationFailed)
			return nil, telemetry.OutcomeReservationFailed,
				domain.Unavailable(err, "checkout.reserve", "failed to reserve inventory")
		}
		reserved = i + 1
	}

	// Step 4: capture payment. Timeout counts as failure and compensates;
	// the cart stays intact so the buyer can retry.
	result, err := s.charge(ctx, order, params.PaymentDetails)
	if err != nil || !result.Success {
		s.restoreStock(ctx, logger, order.Lines)
		if markErr := order.MarkPaymentFailed(); markErr != nil {
			logger.ErrorContext(ctx, "failed to mark payment failed", slog.String("error", markErr.Error()))
		}
		reason := reasonPaymentFailed
		if err == nil {
			reason = reasonPaymentDeclined
			if result.DeclineReason != "" {
				reason = reasonPaymentDeclined + ": " + result.DeclineReason
			}
		}
		s.cancelOrder(ctx, logger, order, reason)

		if err != nil {
			logger.ErrorContext(ctx, "payment attempt errored", slog.String("error", err.Error()))
			return nil, telemetry.OutcomePaymentDeclined,
				domain.Unavailable(err, "checkout.payment", "payment provider unavailable")
		}
		logger.InfoContext(ctx, "payment declined", slog.String("reason", result.DeclineReason))
		return nil, telemetry.OutcomePaymentDeclined,
			domain.Errorf(domain.EPAYMENT, "checkout.payment", "payment declined: %s", result.DeclineReason)
	}

	if err := order.MarkPaid(result.TransactionID, result.Gateway); err != nil {
		return nil, telemetry.OutcomeInternalError, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, telemetry.OutcomeInternalError, err
	}
	logger.InfoContext(ctx, "payment captured",
		slog.String("transaction_id", result.TransactionID),
		slog.String("gateway", result.Gateway))
	s.publish(ctx, logger, events.TypeOrderPaid, order, "")

	// Step 5: clear cart. Failure here is non-fatal; the order stays paid
	// and the stale cart is corrected on the next write.
	cart.Clear()
	if err := s.carts.Save(ctx, cart); err != nil {
		logger.WarnContext(ctx, "failed to clear cart after checkout", slog.String("error", err.Error()))
	}

	return order, telemetry.OutcomeSuccess, nil
}

// charge bounds the provider call with the payment timeout.
func (s *checkoutService) charge(ctx context.Context, order *domain.Order, details map[string]string) (*payment.ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	return s.payments.Charge(chargeCtx, payment.ChargeParams{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		AmountCents:    order.Pricing.TotalCents,
		Method:         order.PaymentMethod,
		Details:        details,
		IdempotencyKey: "charge-" + order.ID,
	})
}

// restoreStock re-adds quantities for the given lines. Failures are logged
// and skipped; a partially restored compensation is still better than none.
func (s *checkoutService) restoreStock(ctx context.Context, logger *slog.Logger, lines []domain.OrderLine) {
	if len(lines) == 0 {
		return
	}
	s.metrics.IncCompensation(telemetry.CompensationStockRestore)

	for _, line := range lines {
		if _, err := s.ledger.AdjustStock(ctx, line.ProductID, line.Quantity, stock.OpAdd); err != nil {
			logger.ErrorContext(ctx, "failed to restore stock",
				slog.String("product_id", line.ProductID),
				slog.Int("quantity", int(line.Quantity)),
				slog.String("error", err.Error()))
		}
	}
}

// cancelOrder transitions the order to cancelled and persists it.
func (s *checkoutService) cancelOrder(ctx context.Context, logger *slog.Logger, order *domain.Order, reason string) {
	s.metrics.IncCompensation(telemetry.CompensationOrderCancel)

	if err := order.Cancel(reason); err != nil {
		logger.ErrorContext(ctx, "failed to cancel order", slog.String("error", err.Error()))
		return
	}
	if err := s.orders.Update(ctx, order); err != nil {
		logger.ErrorContext(ctx, "failed to persist cancelled order", slog.String("error", err.Error()))
		return
	}
	logger.InfoContext(ctx, "order cancelled", slog.String("reason", reason))
	s.publish(ctx, logger, events.TypeOrderCancelled, order, reason)
}

// publish emits an order event, logging failures without failing the saga.
func (s *checkoutService) publish(ctx context.Context, logger *slog.Logger, eventType string, order *domain.Order, reason string) {
	err := s.events.Publish(ctx, events.Event{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalCents:    order.Pricing.TotalCents,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}

func (s *checkoutService) lockFor(userID string) *sync.Mutex {
	mu, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// orderLinesFromCart copies cart lines into unpriced order lines.
func orderLinesFromCart(cart *domain.Cart) []domain.OrderLine {
	lines := make([]domain.OrderLine, len(cart.Lines))
	for i, l := range cart.Lines {
		lines[i] = domain.OrderLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			Product:        l.Product,
		}
	}
	return lines
}

const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"

// generateOrderNumber builds ORD-YYYYMMDD-XXXXXX with a random suffix, so
// concurrent checkouts never collide the way count-based numbering does.
func generateOrderNumber() string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		panic(err)
	}
	for i, b := range suffix {
		suffix[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return "ORD-" + time.Now().UTC().Format("20060102") + "-" + string(suffix)
}
