package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// SimulatorConfig tunes the simulated gateway.
type SimulatorConfig struct {
	// SuccessRate is the fraction of charges that succeed. Default 0.95.
	SuccessRate float64

	// ChargeDelay simulates gateway processing time. Default 1s.
	ChargeDelay time.Duration

	// RefundDelay simulates refund processing time. Default 1.5s.
	RefundDelay time.Duration

	// Seed fixes the random source for deterministic tests. Zero seeds
	// from the clock.
	Seed int64
}

// Simulator is a fake payment gateway with a configurable success rate and
// processing delay. Charges carry transaction ids shaped like real gateway
// references (TXN_<unix-millis>_<suffix>). Repeating a successful charge
// under the same idempotency key replays the original result; declines are
// not cached, so a retried attempt gets a fresh outcome.
type Simulator struct {
	cfg SimulatorConfig

	mu   sync.Mutex
	rng  *rand.Rand
	seen map[string]*ChargeResult
}

var _ Provider = (*Simulator)(nil)

// NewSimulator creates a simulator, filling in config defaults.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.SuccessRate <= 0 || cfg.SuccessRate > 1 {
		cfg.SuccessRate = 0.95
	}
	if cfg.ChargeDelay == 0 {
		cfg.ChargeDelay = time.Second
	}
	if cfg.RefundDelay == 0 {
		cfg.RefundDelay = 1500 * time.Millisecond
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
		seen: make(map[string]*ChargeResult),
	}
}

// Charge waits out the processing delay, then succeeds with the configured
// probability. Context cancellation during the delay aborts the attempt.
func (s *Simulator) Charge(ctx context.Context, params ChargeParams) (*ChargeResult, error) {
	if params.IdempotencyKey != "" {
		s.mu.Lock()
		prev, ok := s.seen[params.IdempotencyKey]
		s.mu.Unlock()
		if ok {
			return prev, nil
		}
	}

	if err := s.wait(ctx, s.cfg.ChargeDelay); err != nil {
		return nil, err
	}

	s.mu.Lock()
	success := s.rng.Float64() < s.cfg.SuccessRate
	txnID := s.transactionIDLocked()
	s.mu.Unlock()

	result := &ChargeResult{}
	if success {
		result.Success = true
		result.TransactionID = txnID
		result.Gateway = GatewayFor(params.Method)
	} else {
		result.DeclineReason = "Payment declined by bank"
	}

	// Only successful charges are recorded: retrying a declined payment is a
	// new attempt, not a replay.
	if params.IdempotencyKey != "" && result.Success {
		s.mu.Lock()
		s.seen[params.IdempotencyKey] = result
		s.mu.Unlock()
	}

	return result, nil
}

// Refund always succeeds after the refund delay.
func (s *Simulator) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	if err := s.wait(ctx, s.cfg.RefundDelay); err != nil {
		return nil, err
	}

	s.mu.Lock()
	refundID := s.transactionIDLocked()
	s.mu.Unlock()

	return &RefundResult{
		Success:     true,
		RefundID:    refundID,
		AmountCents: params.AmountCents,
	}, nil
}

func (s *Simulator) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const txnAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func (s *Simulator) transactionIDLocked() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = txnAlphabet[s.rng.Intn(len(txnAlphabet))]
	}
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), suffix)
}
