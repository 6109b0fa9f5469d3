package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/stock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memCartStore is an in-memory domain.CartStore. Get and Save copy the
// aggregate so tests observe persisted state, not shared pointers.
type memCartStore struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	saveErr error
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[string]*domain.Cart)}
}

func (s *memCartStore) Get(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, ok := s.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (s *memCartStore) Save(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.carts[cart.UserID] = cloneCart(cart)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Lines = append([]domain.CartLine(nil), c.Lines...)
	return &cp
}

// memOrderStore is an in-memory domain.OrderStore.
type memOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	updateErr error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]*domain.Order)}
}

func (s *memOrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memOrderStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *memOrderStore) GetByNumber(_ context.Context, orderNumber string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.OrderNumber == orderNumber {
			return cloneOrder(order), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (s *memOrderStore) Update(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *memOrderStore) ListByUser(_ context.Context, userID string, filter domain.OrderFilter) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Order
	for _, order := range s.orders {
		if order.UserID != userID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, cloneOrder(order))
	}
	return out, nil
}

func (s *memOrderStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp
}

// flakyLedger wraps a Ledger and fails AdjustStock for scripted products.
type flakyLedger struct {
	stock.Ledger
	failAdjust map[string]error
}

func (l *flakyLedger) AdjustStock(ctx context.Context, productID string, amount int32, op stock.Op) (int32, error) {
	if err, ok := l.failAdjust[productID]; ok {
		return 0, err
	}
	return l.Ledger.AdjustStock(ctx, productID, amount, op)
}
