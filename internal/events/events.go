// Package events publishes order lifecycle events so downstream consumers
// (notifications, analytics) can react without being in the request path.
// Publishing is best effort; services log failures and continue.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeOrderCreated   = "order.created"
	TypeOrderPaid      = "order.paid"
	TypeOrderCancelled = "order.cancelled"
	TypeOrderRefunded  = "order.refunded"
	TypeOrderShipped   = "order.shipped"
	TypeOrderDelivered = "order.delivered"
)

// Event is one order lifecycle notification.
type Event struct {
	Type          string    `json:"type"`
	OrderID       string    `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	UserID        string    `json:"userId"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"paymentStatus"`
	TotalCents    int64     `json:"totalCents"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher emits order events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards events. Used when no broker is configured.
type NoopPublisher struct{}

var _ Publisher = (*NoopPublisher)(nil)

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
