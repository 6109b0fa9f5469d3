package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/stock"
)

// OrderService provides read and admin transition operations on orders.
type OrderService interface {
	// GetOrder retrieves a single order by id.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOrderByNumber retrieves a single order by its display number.
	GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)

	// ListUserOrders returns a user's orders, newest first.
	ListUserOrders(ctx context.Context, userID string, filter domain.OrderFilter) ([]*domain.Order, error)

	// UpdateStatus applies an admin status transition. Shipped and
	// delivered record tracking data; cancelled restores stock.
	UpdateStatus(ctx context.Context, orderID string, params StatusUpdateParams) (*domain.Order, error)

	// CancelOrder cancels an unshipped order and restores stock for every
	// line. Payment refunds are a separate, explicit operation.
	CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error)
}

// StatusUpdateParams carries the target status and its side data.
type StatusUpdateParams struct {
	Status         domain.OrderStatus
	TrackingNumber string
	Carrier        string
	Reason         string
}

// orderService implements OrderService.
type orderService struct {
	orders domain.OrderStore
	ledger stock.Ledger
	events events.Publisher
	logger *slog.Logger
}

// NewOrderService creates an OrderService instance.
func NewOrderService(orders domain.OrderStore, ledger stock.Ledger, publisher events.Publisher, logger *slog.Logger) OrderService {
	return &orderService{
		orders: orders,
		ledger: ledger,
		events: publisher,
		logger: logger,
	}
}

// GetOrder retrieves a single order by id.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// GetOrderByNumber retrieves a single order by its display number.
func (s *orderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.orders.GetByNumber(ctx, orderNumber)
}

// ListUserOrders returns a user's orders, newest first.
func (s *orderService) ListUserOrders(ctx context.Context, userID string, filter domain.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != "" && !domain.ValidOrderStatus(filter.Status) {
		return nil, domain.Invalid("order.list", "unknown status: "+string(filter.Status))
	}
	return s.orders.ListByUser(ctx, userID, filter)
}

// UpdateStatus applies an admin transition through the aggregate's state
// machine.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, params StatusUpdateParams) (*domain.Order, error) {
	if !domain.ValidOrderStatus(params.Status) {
		return nil, domain.Invalid("order.updateStatus", "unknown status: "+string(params.Status))
	}

	switch params.Status {
	case domain.OrderStatusCancelled:
		return s.CancelOrder(ctx, orderID, params.Reason)
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var eventType string
	switch params.Status {
	case domain.OrderStatusShipped:
		err = order.MarkShipped(params.TrackingNumber, params.Carrier)
		eventType = events.TypeOrderShipped
	case domain.OrderStatusDelivered:
		err = order.MarkDelivered()
		eventType = events.TypeOrderDelivered
	default:
		err = order.Advance(params.Status)
	}
	if err != nil {
		return nil, err
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)))
	if eventType != "" {
		s.publish(ctx, eventType, order, "")
	}

	return order, nil
}

// CancelOrder cancels the order, then restores stock for every line
// unconditionally. Restore failures are logged and skipped so one bad
// product id cannot hold the cancellation hostage.
func (s *orderService) CancelOrder(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := order.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		if _, err := s.ledger.AdjustStock(ctx, line.ProductID, line.Quantity, stock.OpAdd); err != nil {
			s.logger.ErrorContext(ctx, "failed to restore stock on cancel",
				slog.String("order_id", order.ID),
				slog.String("product_id", line.ProductID),
				slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "order cancelled",
		slog.String("order_id", order.ID),
		slog.String("reason", reason))
	s.publish(ctx, events.TypeOrderCancelled, order, reason)

	return order, nil
}

func (s *orderService) publish(ctx context.Context, eventType string, order *domain.Order, reason string) {
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
