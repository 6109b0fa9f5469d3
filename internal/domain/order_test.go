package domain

import (
	"errors"
	"testing"
	"time"
)

func testOrder(t *testing.T) *Order {
	t.Helper()
	return NewOrder("order-1", "ORD-20260831-ABC123", NewOrderParams{
		UserID: "user-1",
		Lines: []OrderLine{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000},
			{ProductID: "p2", Quantity: 1, UnitPriceCents: 500},
		},
		TaxCents:       125,
		ShippingCents:  999,
		PaymentMethod:  PaymentMethodCreditCard,
		ShippingMethod: "standard",
	})
}

func TestNewOrder(t *testing.T) {
	order := NewOrder("order-1", "ORD-20260831-ABC123", NewOrderParams{
		UserID: "user-1",
		Lines: []OrderLine{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000},
			{ProductID: "p2", Quantity: 3, UnitPriceCents: 250},
		},
		TaxCents:          138,
		ShippingCents:     999,
		DiscountCents:     100,
		PaymentMethod:     PaymentMethodPayPal,
		ShippingMethod:    "express",
		EstimatedDelivery: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
	})

	if order.Status != OrderStatusPending {
		t.Errorf("Status = %q, want pending", order.Status)
	}
	if order.PaymentStatus != PaymentStatusPending {
		t.Errorf("PaymentStatus = %q, want pending", order.PaymentStatus)
	}

	// Line totals are derived from quantity and unit price.
	if order.Lines[0].LineTotalCents != 2000 {
		t.Errorf("Lines[0].LineTotalCents = %d, want 2000", order.Lines[0].LineTotalCents)
	}
	if order.Lines[1].LineTotalCents != 750 {
		t.Errorf("Lines[1].LineTotalCents = %d, want 750", order.Lines[1].LineTotalCents)
	}

	// total = subtotal + tax + shipping - discount
	if order.Pricing.SubtotalCents != 2750 {
		t.Errorf("SubtotalCents = %d, want 2750", order.Pricing.SubtotalCents)
	}
	wantTotal := int64(2750 + 138 + 999 - 100)
	if order.Pricing.TotalCents != wantTotal {
		t.Errorf("TotalCents = %d, want %d", order.Pricing.TotalCents, wantTotal)
	}

	if order.Shipping.EstimatedDelivery == nil {
		t.Error("EstimatedDelivery should be set")
	}
}

func TestOrder_MarkPaid(t *testing.T) {
	order := testOrder(t)

	if err := order.MarkPaid("TXN_123", "Stripe"); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	if order.PaymentStatus != PaymentStatusPaid {
		t.Errorf("PaymentStatus = %q, want paid", order.PaymentStatus)
	}
	if order.Status != OrderStatusConfirmed {
		t.Errorf("Status = %q, want confirmed", order.Status)
	}
	if order.Payment.TransactionID != "TXN_123" || order.Payment.Gateway != "Stripe" {
		t.Errorf("Payment = %+v, want TXN_123/Stripe", order.Payment)
	}
	if order.Payment.PaidAt == nil {
		t.Error("PaidAt should be set")
	}

	// Double payment is rejected.
	if err := order.MarkPaid("TXN_456", "Stripe"); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("second MarkPaid() error = %v, want ErrAlreadyPaid", err)
	}
	if order.Payment.TransactionID != "TXN_123" {
		t.Errorf("TransactionID overwritten to %q", order.Payment.TransactionID)
	}
}

func TestOrder_MarkPaymentFailed(t *testing.T) {
	order := testOrder(t)

	if err := order.MarkPaymentFailed(); err != nil {
		t.Fatalf("MarkPaymentFailed() error = %v", err)
	}
	if order.PaymentStatus != PaymentStatusFailed {
		t.Errorf("PaymentStatus = %q, want failed", order.PaymentStatus)
	}

	// A paid order cannot be marked failed.
	paid := testOrder(t)
	if err := paid.MarkPaid("TXN_1", "Stripe"); err != nil {
		t.Fatal(err)
	}
	if err := paid.MarkPaymentFailed(); !errors.Is(err, ErrAlreadyPaid) {
		t.Errorf("MarkPaymentFailed() on paid order error = %v, want ErrAlreadyPaid", err)
	}
}

func TestOrder_MarkShipped(t *testing.T) {
	t.Run("from confirmed", func(t *testing.T) {
		order := testOrder(t)
		if err := order.MarkPaid("TXN_1", "Stripe"); err != nil {
			t.Fatal(err)
		}

		if err := order.MarkShipped("1Z999", "UPS"); err != nil {
			t.Fatalf("MarkShipped() error = %v", err)
		}
		if order.Status != OrderStatusShipped {
			t.Errorf("Status = %q, want shipped", order.Status)
		}
		if order.Shipping.TrackingNumber != "1Z999" || order.Shipping.Carrier != "UPS" {
			t.Errorf("Shipping = %+v", order.Shipping)
		}
		if order.Shipping.ShippedAt == nil {
			t.Error("ShippedAt should be set")
		}
	})

	t.Run("from pending is rejected", func(t *testing.T) {
		order := testOrder(t)
		err := order.MarkShipped("1Z999", "UPS")
		if ErrorCode(err) != ECONFLICT {
			t.Errorf("MarkShipped() from pending error code = %q, want %q", ErrorCode(err), ECONFLICT)
		}
	})
}

func TestOrder_MarkDelivered(t *testing.T) {
	order := testOrder(t)
	if err := order.MarkPaid("TXN_1", "Stripe"); err != nil {
		t.Fatal(err)
	}

	// Not shipped yet.
	if err := order.MarkDelivered(); ErrorCode(err) != ECONFLICT {
		t.Errorf("MarkDelivered() before shipping error code = %q, want %q", ErrorCode(err), ECONFLICT)
	}

	if err := order.MarkShipped("1Z999", "UPS"); err != nil {
		t.Fatal(err)
	}
	if err := order.MarkDelivered(); err != nil {
		t.Fatalf("MarkDelivered() error = %v", err)
	}
	if order.Status != OrderStatusDelivered {
		t.Errorf("Status = %q, want delivered", order.Status)
	}
	if order.Shipping.DeliveredAt == nil {
		t.Error("DeliveredAt should be set")
	}
}

func TestOrder_Cancel(t *testing.T) {
	t.Run("pending order cancels with reason in notes", func(t *testing.T) {
		order := testOrder(t)

		if err := order.Cancel("payment declined"); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if order.Status != OrderStatusCancelled {
			t.Errorf("Status = %q, want cancelled", order.Status)
		}
		if order.Notes != "Cancelled: payment declined" {
			t.Errorf("Notes = %q", order.Notes)
		}
	})

	t.Run("shipped order cannot cancel", func(t *testing.T) {
		order := testOrder(t)
		if err := order.MarkPaid("TXN_1", "Stripe"); err != nil {
			t.Fatal(err)
		}
		if err := order.MarkShipped("1Z999", "UPS"); err != nil {
			t.Fatal(err)
		}

		if order.CanCancel() {
			t.Error("CanCancel() = true for shipped order")
		}
		if err := order.Cancel("too late"); ErrorCode(err) != ECONFLICT {
			t.Errorf("Cancel() shipped error code = %q, want %q", ErrorCode(err), ECONFLICT)
		}
	})

	t.Run("cancel is not idempotent", func(t *testing.T) {
		order := testOrder(t)
		if err := order.Cancel("first"); err != nil {
			t.Fatal(err)
		}
		if err := order.Cancel("second"); ErrorCode(err) != ECONFLICT {
			t.Errorf("second Cancel() error code = %q, want %q", ErrorCode(err), ECONFLICT)
		}
	})
}

func TestOrder_Refund(t *testing.T) {
	t.Run("refunds a paid order", func(t *testing.T) {
		order := testOrder(t)
		if err := order.MarkPaid("TXN_1", "Stripe"); err != nil {
			t.Fatal(err)
		}

		if err := order.Refund("customer request"); err != nil {
			t.Fatalf("Refund() error = %v", err)
		}
		if order.PaymentStatus != PaymentStatusRefunded {
			t.Errorf("PaymentStatus = %q, want refunded", order.PaymentStatus)
		}
		if order.Status != OrderStatusRefunded {
			t.Errorf("Status = %q, want refunded", order.Status)
		}
		if order.Notes != "Refunded: customer request" {
			t.Errorf("Notes = %q", order.Notes)
		}
	})

	t.Run("unpaid order cannot refund", func(t *testing.T) {
		order := testOrder(t)
		if err := order.Refund("nope"); !errors.Is(err, ErrOrderNotPaid) {
			t.Errorf("Refund() unpaid error = %v, want ErrOrderNotPaid", err)
		}
	})
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusProcessing, true},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusRefunded, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusRefunded, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusRefunded, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestValidPaymentMethod(t *testing.T) {
	for _, m := range []PaymentMethod{
		PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodBankTransfer, PaymentMethodCashOnDelivery,
	} {
		if !ValidPaymentMethod(m) {
			t.Errorf("ValidPaymentMethod(%q) = false", m)
		}
	}
	if ValidPaymentMethod("bitcoin") {
		t.Error(`ValidPaymentMethod("bitcoin") = true`)
	}
}
