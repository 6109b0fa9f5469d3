package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/payment"
)

// PaymentService handles standalone payment operations on existing orders,
// outside the checkout saga. A declined standalone payment marks the order's
// payment failed but runs no stock compensation; the order was placed before
// this call and keeps its reservation.
type PaymentService interface {
	// ProcessPayment charges an unpaid order.
	ProcessPayment(ctx context.Context, orderID string, details map[string]string) (*domain.Order, error)

	// RefundPayment refunds a paid order, partially when amountCents > 0.
	RefundPayment(ctx context.Context, orderID string, amountCents int64, reason string) (*RefundOutcome, error)

	// GetPaymentDetail returns the payment view of an order.
	GetPaymentDetail(ctx context.Context, orderID string) (*PaymentDetail, error)
}

// RefundOutcome pairs the refund id with the updated order.
type RefundOutcome struct {
	RefundID string
	Order    *domain.Order
}

// PaymentDetail is the payment-centric view of an order.
type PaymentDetail struct {
	OrderID       string                `json:"orderId"`
	OrderNumber   string                `json:"orderNumber"`
	PaymentStatus domain.PaymentStatus  `json:"paymentStatus"`
	PaymentMethod domain.PaymentMethod  `json:"paymentMethod"`
	Payment       domain.PaymentDetails `json:"paymentDetails"`
	TotalCents    int64                 `json:"totalCents"`
}

// paymentService implements PaymentService.
type paymentService struct {
	orders         domain.OrderStore
	provider       payment.Provider
	events         events.Publisher
	logger         *slog.Logger
	paymentTimeout time.Duration
}

// NewPaymentService creates a PaymentService instance.
func NewPaymentService(orders domain.OrderStore, provider payment.Provider, publisher events.Publisher, logger *slog.Logger) PaymentService {
	return &paymentService{
		orders:         orders,
		provider:       provider,
		events:         publisher,
		logger:         logger,
		paymentTimeout: DefaultPaymentTimeout,
	}
}

// ProcessPayment charges the order's total. Double payment returns
// ErrAlreadyPaid before the gateway is touched.
func (s *paymentService) ProcessPayment(ctx context.Context, orderID string, details map[string]string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == domain.PaymentStatusPaid {
		return nil, domain.ErrAlreadyPaid
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	result, err := s.provider.Charge(chargeCtx, payment.ChargeParams{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		AmountCents:    order.Pricing.TotalCents,
		Method:         order.PaymentMethod,
		Details:        details,
		IdempotencyKey: "charge-" + order.ID,
	})
	if err != nil {
		return nil, domain.Unavailable(err, "payment.process", "payment provider unavailable")
	}

	if !result.Success {
		if markErr := order.MarkPaymentFailed(); markErr != nil {
			return nil, markErr
		}
		if err := s.orders.Update(ctx, order); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "standalone payment declined",
			slog.String("order_id", order.ID),
			slog.String("reason", result.DeclineReason))
		return nil, domain.Errorf(domain.EPAYMENT, "payment.process", "payment declined: %s", result.DeclineReason)
	}

	if err := order.MarkPaid(result.TransactionID, result.Gateway); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment processed",
		slog.String("order_id", order.ID),
		slog.String("transaction_id", result.TransactionID))
	s.publish(ctx, events.TypeOrderPaid, order, "")

	return order, nil
}

// RefundPayment refunds through the provider, then marks the order refunded.
func (s *paymentService) RefundPayment(ctx context.Context, orderID string, amountCents int64, reason string) (*RefundOutcome, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return nil, domain.ErrOrderNotPaid
	}

	if amountCents <= 0 {
		amountCents = order.Pricing.TotalCents
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	result, err := s.provider.Refund(refundCtx, payment.RefundParams{
		OrderID:       order.ID,
		TransactionID: order.Payment.TransactionID,
		AmountCents:   amountCents,
		Reason:        reason,
	})
	if err != nil {
		return nil, domain.Unavailable(err, "payment.refund", "payment provider unavailable")
	}
	if !result.Success {
		return nil, domain.Errorf(domain.EPAYMENT, "payment.refund", "refund failed: %s", result.FailureReason)
	}

	if err := order.Refund(reason); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "refund processed",
		slog.String("order_id", order.ID),
		slog.String("refund_id", result.RefundID),
		slog.Int64("amount_cents", amountCents))
	s.publish(ctx, events.TypeOrderRefunded, order, reason)

	return &RefundOutcome{RefundID: result.RefundID, Order: order}, nil
}

// GetPaymentDetail returns payment fields for an order.
func (s *paymentService) GetPaymentDetail(ctx context.Context, orderID string) (*PaymentDetail, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &PaymentDetail{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Payment:       order.Payment,
		TotalCents:    order.Pricing.TotalCents,
	}, nil
}

func (s *paymentService) publish(ctx context.Context, eventType string, order *domain.Order, reason string) {
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
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
	}
}
