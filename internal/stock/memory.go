package stock

import (
	"context"
	"sync"
)

// MemoryLedger is an in-process Ledger guarded by a mutex. Used in tests and
// for running the server without a catalog database.
type MemoryLedger struct {
	mu       sync.RWMutex
	products map[string]*Product
}

var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		products: make(map[string]*Product),
	}
}

// Seed inserts or replaces products wholesale.
func (m *MemoryLedger) Seed(products ...Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range products {
		cp := p
		m.products[p.ID] = &cp
	}
}

// GetProduct returns a copy of the ledger entry.
func (m *MemoryLedger) GetProduct(_ context.Context, productID string) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// AdjustStock applies the adjustment under the ledger lock. Subtract clamps
// the floor at zero.
func (m *MemoryLedger) AdjustStock(_ context.Context, productID string, amount int32, op Op) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return 0, ErrProductNotFound
	}

	switch op {
	case OpAdd:
		p.Stock += amount
	case OpSubtract:
		p.Stock -= amount
		if p.Stock < 0 {
			p.Stock = 0
		}
	case OpSet:
		p.Stock = amount
	default:
		return 0, ErrInvalidOp
	}

	return p.Stock, nil
}
