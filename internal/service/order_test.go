package service

import (
	"context"
	"testing"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderEnv(t *testing.T) (OrderService, *memOrderStore, *stock.MemoryLedger) {
	t.Helper()

	ledger := stock.NewMemoryLedger()
	ledger.Seed(
		stock.Product{ID: "p1", PriceCents: 1500, Stock: 8},
		stock.Product{ID: "p2", PriceCents: 1000, Stock: 4},
	)
	orders := newMemOrderStore()
	return NewOrderService(orders, ledger, events.NoopPublisher{}, testLogger()), orders, ledger
}

// seedOrder creates a confirmed, paid order whose stock has already been
// reserved out of the ledger.
func seedOrder(t *testing.T, orders *memOrderStore) *domain.Order {
	t.Helper()

	order := domain.NewOrder("order-1", "ORD-20260831-TEST01", domain.NewOrderParams{
		UserID: "user-1",
		Lines: []domain.OrderLine{
			{ProductID: "p1", Quantity: 2, UnitPriceCents: 1500},
			{ProductID: "p2", Quantity: 1, UnitPriceCents: 1000},
		},
		TaxCents:       320,
		ShippingCents:  999,
		PaymentMethod:  domain.PaymentMethodCreditCard,
		ShippingMethod: "standard",
	})
	require.NoError(t, order.MarkPaid("TXN_1", "Stripe"))
	require.NoError(t, orders.Create(context.Background(), order))
	return order
}

func TestOrderService_GetOrder(t *testing.T) {
	svc, orders, _ := newOrderEnv(t)
	seeded := seedOrder(t, orders)
	ctx := context.Background()

	order, err := svc.GetOrder(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, seeded.OrderNumber, order.OrderNumber)

	byNumber, err := svc.GetOrderByNumber(ctx, seeded.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, byNumber.ID)

	_, err = svc.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_ListUserOrders(t *testing.T) {
	svc, orders, _ := newOrderEnv(t)
	seedOrder(t, orders)
	ctx := context.Background()

	list, err := svc.ListUserOrders(ctx, "user-1", domain.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = svc.ListUserOrders(ctx, "user-1", domain.OrderFilter{Status: domain.OrderStatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.ListUserOrders(ctx, "user-1", domain.OrderFilter{Status: "bogus"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestOrderService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ship then deliver", func(t *testing.T) {
		svc, orders, _ := newOrderEnv(t)
		seeded := seedOrder(t, orders)

		order, err := svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{
			Status:         domain.OrderStatusShipped,
			TrackingNumber: "1Z999",
			Carrier:        "UPS",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusShipped, order.Status)
		assert.Equal(t, "1Z999", order.Shipping.TrackingNumber)

		order, err = svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{Status: domain.OrderStatusDelivered})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusDelivered, order.Status)
		assert.NotNil(t, order.Shipping.DeliveredAt)
	})

	t.Run("generic advance", func(t *testing.T) {
		svc, orders, _ := newOrderEnv(t)
		seeded := seedOrder(t, orders)

		order, err := svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{Status: domain.OrderStatusProcessing})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusProcessing, order.Status)
	})

	t.Run("invalid transition surfaces as conflict", func(t *testing.T) {
		svc, orders, _ := newOrderEnv(t)
		seeded := seedOrder(t, orders)

		_, err := svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{Status: domain.OrderStatusDelivered})
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, orders, _ := newOrderEnv(t)
		seeded := seedOrder(t, orders)

		_, err := svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{Status: "lost-in-transit"})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stock for every line", func(t *testing.T) {
		svc, orders, ledger := newOrderEnv(t)
		seeded := seedOrder(t, orders)

		order, err := svc.CancelOrder(ctx, seeded.ID, "customer changed mind")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, order.Status)
		assert.Contains(t, order.Notes, "customer changed mind")

		p1, err := ledger.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int32(10), p1.Stock)

		p2, err := ledger.GetProduct(ctx, "p2")
		require.NoError(t, err)
		assert.Equal(t, int32(5), p2.Stock)
	})

	t.Run("shipped order cannot cancel", func(t *testing.T) {
		svc, orders, ledger := newOrderEnv(t)
		seeded := seedOrder(t, orders)
		_, err := svc.UpdateStatus(ctx, seeded.ID, StatusUpdateParams{
			Status:         domain.OrderStatusShipped,
			TrackingNumber: "1Z999",
			Carrier:        "UPS",
		})
		require.NoError(t, err)

		_, err = svc.CancelOrder(ctx, seeded.ID, "too late")
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

		// No stock was restored.
		p1, err := ledger.GetProduct(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int32(8), p1.Stock)
	})

	t.Run("cancellation survives a failed restore", func(t *testing.T) {
		ledger := stock.NewMemoryLedger()
		ledger.Seed(stock.Product{ID: "p1", PriceCents: 1500, Stock: 8})
		// p2 is unknown to this ledger, so its restore fails.
		orders := newMemOrderStore()
		svc := NewOrderService(orders, ledger, events.NoopPublisher{}, testLogger())
		seeded := seedOrder(t, orders)

		order, err := svc.CancelOrder(context.Background(), seeded.ID, "oops")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, order.Status)

		p1, err := ledger.GetProduct(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, int32(10), p1.Stock, "restorable lines still restore")
	})
}
