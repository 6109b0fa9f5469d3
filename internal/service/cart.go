package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/fjellmark/njord/internal/stock"
)

// CartService provides business logic for shopping cart operations.
type CartService interface {
	// GetCart retrieves a user's cart, creating an empty one on first access.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// AddItem adds a product to the cart after checking price and stock
	// against the ledger. The ledger price is snapshotted onto the line.
	AddItem(ctx context.Context, userID, productID string, quantity int32) (*domain.Cart, error)

	// UpdateQuantity sets a line's quantity; zero removes the line.
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int32) (*domain.Cart, error)

	// RemoveItem removes a line. Absent lines are a no-op.
	RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error)

	// ClearCart empties the cart.
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)

	// Validate re-checks every line against the ledger without mutating
	// the cart.
	Validate(ctx context.Context, userID string) (*domain.CartValidation, error)
}

// cartService implements CartService.
type cartService struct {
	carts  domain.CartStore
	ledger stock.Ledger
	logger *slog.Logger
}

// NewCartService creates a CartService instance.
func NewCartService(carts domain.CartStore, ledger stock.Ledger, logger *slog.Logger) CartService {
	return &cartService{
		carts:  carts,
		ledger: ledger,
		logger: logger,
	}
}

// GetCart returns the user's cart, lazily creating and persisting an empty
// one the first time a user is seen.
func (s *cartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return nil, err
	}

	cart = domain.NewCart(userID)
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem verifies the product exists and has enough stock to cover the
// cart's new quantity, then adds the line at the ledger's current price.
func (s *cartService) AddItem(ctx context.Context, userID, productID string, quantity int32) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}

	product, err := s.ledger.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	requested := quantity
	if line, ok := cart.Line(productID); ok {
		requested += line.Quantity
	}
	if requested > product.Stock {
		return nil, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: requested,
			Available: product.Stock,
		}
	}

	if err := cart.AddItem(productID, quantity, product.PriceCents, product.Snapshot); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "cart item added",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", int(quantity)))

	return cart, nil
}

// UpdateQuantity sets a line's quantity, checking stock when increasing.
// Zero or negative removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int32) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if quantity > 0 {
		product, err := s.ledger.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if quantity > product.Stock {
			return nil, &domain.InsufficientStockError{
				ProductID: productID,
				Requested: quantity,
				Available: product.Stock,
			}
		}
	}

	if err := cart.UpdateQuantity(productID, quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem removes a line and saves the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.RemoveItem(productID)
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart empties the cart and saves it.
func (s *cartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	cart.Clear()
	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Validate re-fetches each line's product and reports discrepancies.
func (s *cartService) Validate(ctx context.Context, userID string) (*domain.CartValidation, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return validateCart(ctx, cart, s.ledger)
}

// validateCart compares cart lines against the ledger's current state.
// Shared with the checkout saga so both paths report identical findings.
func validateCart(ctx context.Context, cart *domain.Cart, ledger stock.Ledger) (*domain.CartValidation, error) {
	result := &domain.CartValidation{
		IsValid:       true,
		Discrepancies: []domain.Discrepancy{},
	}

	for _, line := range cart.Lines {
		product, err := ledger.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, stock.ErrProductNotFound) {
				result.IsValid = false
				result.Discrepancies = append(result.Discrepancies, domain.Discrepancy{
					ProductID: line.ProductID,
					Kind:      domain.DiscrepancyProductMissing,
				})
				continue
			}
			return nil, domain.Unavailable(err, "cart.validate", "stock ledger unreachable")
		}

		if line.Quantity > product.Stock {
			result.IsValid = false
			result.Discrepancies = append(result.Discrepancies, domain.Discrepancy{
				ProductID:         line.ProductID,
				Kind:              domain.DiscrepancyInsufficientStock,
				RequestedQuantity: line.Quantity,
				AvailableStock:    product.Stock,
			})
		}

		if line.UnitPriceCents != product.PriceCents {
			result.IsValid = false
			result.Discrepancies = append(result.Discrepancies, domain.Discrepancy{
				ProductID:     line.ProductID,
				Kind:          domain.DiscrepancyPriceChanged,
				OldPriceCents: line.UnitPriceCents,
				NewPriceCents: product.PriceCents,
			})
		}
	}

	return result, nil
}
