package payment

import (
	"context"
	"testing"
	"time"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_DeclineIsNotReplayed(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		SuccessRate: 0.0000001,
		ChargeDelay: time.Millisecond,
		Seed:        1,
	})

	result, err := sim.Charge(context.Background(), ChargeParams{
		OrderID:        "order-1",
		AmountCents:    2500,
		Method:         domain.PaymentMethodCreditCard,
		IdempotencyKey: "charge-order-1",
	})
	require.NoError(t, err)
	require.False(t, result.Success)

	// The decline must not be recorded under the key, so a retry with the
	// same key rolls a fresh attempt instead of replaying the failure.
	sim.mu.Lock()
	_, cached := sim.seen["charge-order-1"]
	sim.mu.Unlock()
	assert.False(t, cached, "declined charges must not be cached")
}

func TestSimulator_SuccessIsCached(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{
		SuccessRate: 1.0,
		ChargeDelay: time.Millisecond,
	})

	result, err := sim.Charge(context.Background(), ChargeParams{
		OrderID:        "order-1",
		AmountCents:    2500,
		Method:         domain.PaymentMethodCreditCard,
		IdempotencyKey: "charge-order-1",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	sim.mu.Lock()
	cached, ok := sim.seen["charge-order-1"]
	sim.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, result.TransactionID, cached.TransactionID)
}
