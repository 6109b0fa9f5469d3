package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/events"
	"github.com/fjellmark/njord/internal/payment"
	"github.com/fjellmark/njord/internal/pricing"
	"github.com/fjellmark/njord/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutEnv struct {
	carts    *memCartStore
	orders   *memOrderStore
	base     *stock.MemoryLedger
	provider *payment.MockProvider
	svc      CheckoutService
}

// newCheckoutEnv seeds two products and a cart for user-1 holding both.
// Cart subtotal is 4000 cents: 2 x 1500 + 1 x 1000.
func newCheckoutEnv(t *testing.T, ledger stock.Ledger) *checkoutEnv {
	t.Helper()

	base := stock.NewMemoryLedger()
	base.Seed(
		stock.Product{ID: "p1", PriceCents: 1500, Stock: 10, Snapshot: domain.ProductSnapshot{Name: "Beans"}},
		stock.Product{ID: "p2", PriceCents: 1000, Stock: 5, Snapshot: domain.ProductSnapshot{Name: "Grinder"}},
	)
	if ledger == nil {
		ledger = base
	} else if fl, ok := ledger.(*flakyLedger); ok {
		fl.Ledger = base
	}

	carts := newMemCartStore()
	cart := domain.NewCart("user-1")
	require.NoError(t, cart.AddItem("p1", 2, 1500, domain.ProductSnapshot{Name: "Beans"}))
	require.NoError(t, cart.AddItem("p2", 1, 1000, domain.ProductSnapshot{Name: "Grinder"}))
	require.NoError(t, carts.Save(context.Background(), cart))

	orders := newMemOrderStore()
	provider := payment.NewMockProvider()

	svc := NewCheckoutService(
		carts, orders, ledger, provider, pricing.NewCalculator(),
		events.NoopPublisher{}, nil, testLogger(), time.Second,
	)

	return &checkoutEnv{carts: carts, orders: orders, base: base, provider: provider, svc: svc}
}

func placeParams() PlaceOrderParams {
	return PlaceOrderParams{
		UserID:          "user-1",
		ShippingAddress: domain.Address{FirstName: "Ada", LastName: "L", Street: "1 Main", City: "NYC", State: "NY", ZipCode: "10001", Country: "US"},
		PaymentMethod:   domain.PaymentMethodCreditCard,
		ShippingMethod:  pricing.MethodStandard,
	}
}

func stockOf(t *testing.T, env *checkoutEnv, id string) int32 {
	t.Helper()
	p, err := env.base.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	order, err := env.svc.PlaceOrder(ctx, placeParams())
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.NotEmpty(t, order.Payment.TransactionID)
	assert.Equal(t, payment.GatewayStripe, order.Payment.Gateway)

	// subtotal 4000 + tax 320 (NY 8%) + shipping 999
	assert.Equal(t, int64(4000), order.Pricing.SubtotalCents)
	assert.Equal(t, int64(320), order.Pricing.TaxCents)
	assert.Equal(t, int64(999), order.Pricing.ShippingCents)
	assert.Equal(t, int64(5319), order.Pricing.TotalCents)

	// Billing defaults to shipping when not supplied.
	assert.Equal(t, order.ShippingAddress, order.BillingAddress)

	// Stock was reserved.
	assert.Equal(t, int32(8), stockOf(t, env, "p1"))
	assert.Equal(t, int32(4), stockOf(t, env, "p2"))

	// Cart was cleared.
	cart, err := env.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	// The paid order is what got persisted.
	stored, err := env.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	cart := domain.NewCart("user-1")
	require.NoError(t, env.carts.Save(ctx, cart))

	_, err := env.svc.PlaceOrder(ctx, placeParams())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, 0, env.orders.count())
}

func TestPlaceOrder_UserWithoutCart(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	// No cart row exists for this user yet; checkout reads that as an
	// empty cart, not a missing resource.
	params := placeParams()
	params.UserID = "never-shopped"

	_, err := env.svc.PlaceOrder(ctx, params)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, env.orders.count())
}

func TestPlaceOrder_InvalidMethods(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	params := placeParams()
	params.PaymentMethod = "barter"
	_, err := env.svc.PlaceOrder(ctx, params)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	params = placeParams()
	params.ShippingMethod = "drone"
	_, err = env.svc.PlaceOrder(ctx, params)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	assert.Equal(t, 0, env.orders.count())
}

func TestPlaceOrder_ValidationBlocks(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient stock", func(t *testing.T) {
		env := newCheckoutEnv(t, nil)
		cart := domain.NewCart("user-1")
		require.NoError(t, cart.AddItem("p2", 8, 1000, domain.ProductSnapshot{Name: "Grinder"}))
		require.NoError(t, env.carts.Save(ctx, cart))

		_, err := env.svc.PlaceOrder(ctx, placeParams())

		var vf *domain.ValidationFailedError
		require.ErrorAs(t, err, &vf)
		require.Len(t, vf.Discrepancies, 1)
		d := vf.Discrepancies[0]
		assert.Equal(t, domain.DiscrepancyInsufficientStock, d.Kind)
		assert.Equal(t, int32(8), d.RequestedQuantity)
		assert.Equal(t, int32(5), d.AvailableStock)

		// No side effects: no order, stock untouched.
		assert.Equal(t, 0, env.orders.count())
		assert.Equal(t, int32(5), stockOf(t, env, "p2"))
	})

	t.Run("price changed", func(t *testing.T) {
		env := newCheckoutEnv(t, nil)
		cart := domain.NewCart("user-1")
		require.NoError(t, cart.AddItem("p1", 1, 1200, domain.ProductSnapshot{Name: "Beans"}))
		require.NoError(t, env.carts.Save(ctx, cart))

		_, err := env.svc.PlaceOrder(ctx, placeParams())

		var vf *domain.ValidationFailedError
		require.ErrorAs(t, err, &vf)
		require.Len(t, vf.Discrepancies, 1)
		d := vf.Discrepancies[0]
		assert.Equal(t, domain.DiscrepancyPriceChanged, d.Kind)
		assert.Equal(t, int64(1200), d.OldPriceCents)
		assert.Equal(t, int64(1500), d.NewPriceCents)
	})
}

func TestPlaceOrder_ReservationFailureCompensates(t *testing.T) {
	// The second line's adjustment fails after the first was subtracted.
	ledger := &flakyLedger{failAdjust: map[string]error{
		"p2": errors.New("ledger write timeout"),
	}}
	env := newCheckoutEnv(t, ledger)
	ctx := context.Background()

	_, err := env.svc.PlaceOrder(ctx, placeParams())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	// p1 was subtracted then restored.
	assert.Equal(t, int32(10), stockOf(t, env, "p1"))
	assert.Equal(t, int32(5), stockOf(t, env, "p2"))

	// The order exists but is cancelled; payment was never attempted.
	require.Equal(t, 1, env.orders.count())
	orders, err := env.orders.ListByUser(ctx, "user-1", domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, orders[0].Status)
	assert.Contains(t, orders[0].Notes, "stock reservation failed")
	assert.Empty(t, env.provider.CallLog)

	// The cart survives for retry.
	cart, err := env.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
}

func TestPlaceOrder_PaymentDeclinedCompensates(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	env.provider.ChargeFunc = func(ctx context.Context, params payment.ChargeParams) (*payment.ChargeResult, error) {
		return &payment.ChargeResult{DeclineReason: "Payment declined by bank"}, nil
	}
	ctx := context.Background()

	_, err := env.svc.PlaceOrder(ctx, placeParams())
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))
	assert.Contains(t, err.Error(), "Payment declined by bank")

	// All reserved stock was re-added.
	assert.Equal(t, int32(10), stockOf(t, env, "p1"))
	assert.Equal(t, int32(5), stockOf(t, env, "p2"))

	// Order is cancelled with payment marked failed.
	orders, err := env.orders.ListByUser(ctx, "user-1", domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, domain.PaymentStatusFailed, orders[0].PaymentStatus)
	assert.Contains(t, orders[0].Notes, "payment declined")

	// The cart is untouched so the buyer can retry.
	cart, err := env.carts.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 2)
	assert.Equal(t, int64(4000), cart.TotalPriceCents)
}

func TestPlaceOrder_PaymentErrorCompensates(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	env.provider.ChargeFunc = func(ctx context.Context, params payment.ChargeParams) (*payment.ChargeResult, error) {
		return nil, context.DeadlineExceeded
	}
	ctx := context.Background()

	_, err := env.svc.PlaceOrder(ctx, placeParams())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	assert.Equal(t, int32(10), stockOf(t, env, "p1"))
	assert.Equal(t, int32(5), stockOf(t, env, "p2"))

	orders, err := env.orders.ListByUser(ctx, "user-1", domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, domain.PaymentStatusFailed, orders[0].PaymentStatus)
}

func TestPlaceOrder_CartClearFailureIsNonFatal(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	// Every Save after setup fails, which only affects the final clear step.
	env.carts.saveErr = errors.New("cart store down")

	order, err := env.svc.PlaceOrder(ctx, placeParams())
	require.NoError(t, err, "a paid order must not fail because the cart could not be cleared")
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
}

func TestPlaceOrder_SerializesPerUser(t *testing.T) {
	env := newCheckoutEnv(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.PlaceOrder(ctx, placeParams())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// The first checkout wins and clears the cart; the serialized second
	// attempt must see the empty cart rather than double-charging.
	var successes, emptyCarts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrEmptyCart):
			emptyCarts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, emptyCarts)

	// Stock was only reserved once.
	assert.Equal(t, int32(8), stockOf(t, env, "p1"))
	assert.Equal(t, int32(4), stockOf(t, env, "p2"))
}

func TestGenerateOrderNumber(t *testing.T) {
	n := generateOrderNumber()

	require.Len(t, n, len("ORD-20060102-XXXXXX"))
	assert.True(t, strings.HasPrefix(n, "ORD-"))

	suffix := n[len(n)-6:]
	for _, c := range suffix {
		assert.Contains(t, orderNumberAlphabet, string(c))
	}

	// Random suffixes should differ across calls.
	assert.NotEqual(t, generateOrderNumber()[13:], generateOrderNumber()[13:])
}
