package domain

import (
	"context"
	"fmt"
	"time"
)

// Order-related domain errors.
var (
	ErrOrderNotFound = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrAlreadyPaid   = &Error{Code: ECONFLICT, Message: "Order already paid"}
	ErrOrderNotPaid  = &Error{Code: ECONFLICT, Message: "Order is not paid"}
)

// InvalidTransition builds a conflict error for a disallowed status change.
func InvalidTransition(op string, from, to OrderStatus) error {
	return Conflict(op, fmt.Sprintf("cannot transition order from %s to %s", from, to))
}

// =============================================================================
// STATUS STATE MACHINES
// =============================================================================

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// validOrderTransitions enumerates every allowed status edge. Terminal states
// have no outgoing edges.
var validOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransition reports whether the status edge from -> to is allowed.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range validOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := validOrderTransitions[s]
	return ok
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod identifies how the buyer pays.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// ValidPaymentMethod reports whether m is a known payment method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodBankTransfer, PaymentMethodCashOnDelivery:
		return true
	}
	return false
}

// =============================================================================
// ORDER AGGREGATE
// =============================================================================

// Address is a shipping or billing address.
type Address struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// OrderLine is a priced order entry, snapshotted at order creation and
// immutable thereafter.
type OrderLine struct {
	ProductID      string          `json:"productId"`
	Quantity       int32           `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	LineTotalCents int64           `json:"lineTotalCents"`
	Product        ProductSnapshot `json:"product"`
}

// Pricing is the order's money breakdown. TotalCents is computed once at
// creation; nothing recomputes it afterwards.
type Pricing struct {
	SubtotalCents int64 `json:"subtotalCents"`
	TaxCents      int64 `json:"taxCents"`
	ShippingCents int64 `json:"shippingCents"`
	DiscountCents int64 `json:"discountCents"`
	TotalCents    int64 `json:"totalCents"`
}

// PaymentDetails records the gateway outcome of a successful charge.
type PaymentDetails struct {
	TransactionID string     `json:"transactionId,omitempty"`
	Gateway       string     `json:"gateway,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
}

// ShippingInfo records the chosen method plus fulfillment tracking data.
type ShippingInfo struct {
	Method            string     `json:"method"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// Order is the order aggregate. Only the services in this module create and
// transition orders; everything else reads them.
type Order struct {
	ID              string         `json:"id"`
	OrderNumber     string         `json:"orderNumber"`
	UserID          string         `json:"userId"`
	Lines           []OrderLine    `json:"items"`
	Pricing         Pricing        `json:"pricing"`
	ShippingAddress Address        `json:"shippingAddress"`
	BillingAddress  Address        `json:"billingAddress"`
	Status          OrderStatus    `json:"status"`
	PaymentStatus   PaymentStatus  `json:"paymentStatus"`
	PaymentMethod   PaymentMethod  `json:"paymentMethod"`
	Payment         PaymentDetails `json:"paymentDetails"`
	Shipping        ShippingInfo   `json:"shippingInfo"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// NewOrderParams carries everything needed to assemble a priced order.
// Tax, shipping and discount are computed by the caller; the aggregate
// enforces the pricing equation.
type NewOrderParams struct {
	UserID            string
	Lines             []OrderLine
	TaxCents          int64
	ShippingCents     int64
	DiscountCents     int64
	ShippingAddress   Address
	BillingAddress    Address
	PaymentMethod     PaymentMethod
	ShippingMethod    string
	EstimatedDelivery time.Time
	Notes             string
}

// NewOrder builds an order in pending/pending state. Line totals and the
// subtotal are derived from the lines; total = subtotal + tax + shipping
// minus discount.
func NewOrder(id, orderNumber string, p NewOrderParams) *Order {
	var subtotal int64
	lines := make([]OrderLine, len(p.Lines))
	for i, l := range p.Lines {
		l.LineTotalCents = int64(l.Quantity) * l.UnitPriceCents
		subtotal += l.LineTotalCents
		lines[i] = l
	}

	now := time.Now().UTC()
	o := &Order{
		ID:          id,
		OrderNumber: orderNumber,
		UserID:      p.UserID,
		Lines:       lines,
		Pricing: Pricing{
			SubtotalCents: subtotal,
			TaxCents:      p.TaxCents,
			ShippingCents: p.ShippingCents,
			DiscountCents: p.DiscountCents,
			TotalCents:    subtotal + p.TaxCents + p.ShippingCents - p.DiscountCents,
		},
		ShippingAddress: p.ShippingAddress,
		BillingAddress:  p.BillingAddress,
		Status:          OrderStatusPending,
		PaymentStatus:   PaymentStatusPending,
		PaymentMethod:   p.PaymentMethod,
		Shipping: ShippingInfo{
			Method: p.ShippingMethod,
		},
		Notes:     p.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !p.EstimatedDelivery.IsZero() {
		est := p.EstimatedDelivery
		o.Shipping.EstimatedDelivery = &est
	}
	return o
}

// MarkPaid records a successful charge. A pending order advances to
// confirmed. Returns ErrAlreadyPaid if the order was already paid.
func (o *Order) MarkPaid(transactionID, gateway string) error {
	if o.PaymentStatus == PaymentStatusPaid {
		return ErrAlreadyPaid
	}

	now := time.Now().UTC()
	o.PaymentStatus = PaymentStatusPaid
	o.Payment = PaymentDetails{
		TransactionID: transactionID,
		Gateway:       gateway,
		PaidAt:        &now,
	}
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusConfirmed
	}
	o.UpdatedAt = now
	return nil
}

// MarkPaymentFailed records a declined or errored charge attempt.
func (o *Order) MarkPaymentFailed() error {
	if o.PaymentStatus == PaymentStatusPaid {
		return ErrAlreadyPaid
	}
	o.PaymentStatus = PaymentStatusFailed
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkShipped transitions a confirmed or processing order to shipped and
// records tracking data.
func (o *Order) MarkShipped(trackingNumber, carrier string) error {
	if o.Status != OrderStatusConfirmed && o.Status != OrderStatusProcessing {
		return InvalidTransition("order.markShipped", o.Status, OrderStatusShipped)
	}

	now := time.Now().UTC()
	o.Status = OrderStatusShipped
	o.Shipping.TrackingNumber = trackingNumber
	o.Shipping.Carrier = carrier
	o.Shipping.ShippedAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkDelivered transitions a shipped order to delivered.
func (o *Order) MarkDelivered() error {
	if o.Status != OrderStatusShipped {
		return InvalidTransition("order.markDelivered", o.Status, OrderStatusDelivered)
	}

	now := time.Now().UTC()
	o.Status = OrderStatusDelivered
	o.Shipping.DeliveredAt = &now
	o.UpdatedAt = now
	return nil
}

// CanCancel reports whether the order may still be cancelled.
func (o *Order) CanCancel() bool {
	switch o.Status {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return false
	}
	return true
}

// Cancel marks the order cancelled and stores the reason in the notes.
// Cancelling touches neither inventory nor payment; callers run the
// compensations.
func (o *Order) Cancel(reason string) error {
	if !o.CanCancel() {
		return InvalidTransition("order.cancel", o.Status, OrderStatusCancelled)
	}

	o.Status = OrderStatusCancelled
	if reason != "" {
		o.Notes = appendNote(o.Notes, "Cancelled: "+reason)
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Refund marks a paid order refunded. Returns ErrOrderNotPaid otherwise.
func (o *Order) Refund(reason string) error {
	if o.PaymentStatus != PaymentStatusPaid {
		return ErrOrderNotPaid
	}

	o.PaymentStatus = PaymentStatusRefunded
	o.Status = OrderStatusRefunded
	if reason != "" {
		o.Notes = appendNote(o.Notes, "Refunded: "+reason)
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Advance moves the order to next if the state machine allows it. Used for
// the generic confirmed/processing transitions; shipped, delivered,
// cancelled and refunded have dedicated methods carrying side data.
func (o *Order) Advance(next OrderStatus) error {
	if !CanTransition(o.Status, next) {
		return InvalidTransition("order.advance", o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " | " + note
}

// =============================================================================
// ORDER STORE
// =============================================================================

// OrderFilter narrows and pages a user's order listing.
type OrderFilter struct {
	Status OrderStatus
	Limit  int32
	Offset int32
}

// OrderStore persists order aggregates.
type OrderStore interface {
	// Create inserts a new order with its lines.
	Create(ctx context.Context, order *Order) error

	// Get loads an order by id. Returns ErrOrderNotFound when absent.
	Get(ctx context.Context, id string) (*Order, error)

	// GetByNumber loads an order by its display number.
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// Update persists mutable order state (status, payment, shipping, notes).
	// Lines are immutable and never rewritten.
	Update(ctx context.Context, order *Order) error

	// ListByUser returns a user's orders, newest first.
	ListByUser(ctx context.Context, userID string, filter OrderFilter) ([]*Order, error)
}
