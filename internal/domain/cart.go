package domain

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrEmptyCart        = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrInvalidPrice     = &Error{Code: EINVALID, Message: "Unit price must not be negative"}
)

// ProductSnapshot captures the display attributes of a product at the moment
// it enters a cart or order. Later catalog edits never touch these copies.
type ProductSnapshot struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	ImageURL string `json:"imageUrl"`
}

// CartLine is a single product entry in a cart. UnitPriceCents is snapshotted
// when the line is first added; it is not refreshed on quantity changes.
type CartLine struct {
	ProductID      string          `json:"productId"`
	Quantity       int32           `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Product        ProductSnapshot `json:"product"`
}

// LineTotalCents returns quantity times the snapshotted unit price.
func (l CartLine) LineTotalCents() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// Cart is the per-user shopping cart aggregate. Lines are ordered by insertion
// and unique per ProductID. TotalItems and TotalPriceCents are recomputed
// synchronously by every mutating method, so readers never observe stale
// totals.
type Cart struct {
	UserID          string     `json:"userId"`
	Lines           []CartLine `json:"items"`
	TotalItems      int32      `json:"totalItems"`
	TotalPriceCents int64      `json:"totalPriceCents"`
	LastModified    time.Time  `json:"lastModified"`
}

// NewCart returns an empty cart owned by userID.
func NewCart(userID string) *Cart {
	return &Cart{
		UserID:       userID,
		Lines:        []CartLine{},
		LastModified: time.Now().UTC(),
	}
}

// RecomputeTotals recalculates TotalItems and TotalPriceCents from the lines.
// Mutating methods call this; stores rebuilding a cart from rows may call it
// directly instead of trusting persisted totals.
func (c *Cart) RecomputeTotals() {
	var items int32
	var price int64
	for _, l := range c.Lines {
		items += l.Quantity
		price += l.LineTotalCents()
	}
	c.TotalItems = items
	c.TotalPriceCents = price
	c.LastModified = time.Now().UTC()
}

// AddItem adds quantity units of a product to the cart. If a line for the
// product already exists its quantity is incremented and the original
// snapshot price is kept. The cart performs no stock check; callers decide
// whether the quantity is actually available.
func (c *Cart) AddItem(productID string, quantity int32, unitPriceCents int64, snapshot ProductSnapshot) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if unitPriceCents < 0 {
		return ErrInvalidPrice
	}

	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity += quantity
			c.RecomputeTotals()
			return nil
		}
	}

	c.Lines = append(c.Lines, CartLine{
		ProductID:      productID,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
		Product:        snapshot,
	})
	c.RecomputeTotals()
	return nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. Returns ErrCartItemNotFound if the product is not in
// the cart.
func (c *Cart) UpdateQuantity(productID string, quantity int32) error {
	if quantity <= 0 {
		if _, ok := c.Line(productID); !ok {
			return ErrCartItemNotFound
		}
		c.RemoveItem(productID)
		return nil
	}

	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			c.RecomputeTotals()
			return nil
		}
	}
	return ErrCartItemNotFound
}

// RemoveItem deletes the line for a product. Removing an absent product is a
// no-op, not an error.
func (c *Cart) RemoveItem(productID string) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.RecomputeTotals()
			return
		}
	}
}

// Clear empties the cart and resets totals to zero.
func (c *Cart) Clear() {
	c.Lines = []CartLine{}
	c.RecomputeTotals()
}

// Line returns the line for a product, if present.
func (c *Cart) Line(productID string) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// =============================================================================
// CART VALIDATION
// =============================================================================

// DiscrepancyKind classifies a cart validation finding.
type DiscrepancyKind string

const (
	DiscrepancyProductMissing    DiscrepancyKind = "product_missing"
	DiscrepancyInsufficientStock DiscrepancyKind = "insufficient_stock"
	DiscrepancyPriceChanged      DiscrepancyKind = "price_changed"
)

// Discrepancy describes one way a cart line no longer matches the catalog.
// Fields beyond ProductID and Kind are populated per kind.
type Discrepancy struct {
	ProductID         string          `json:"productId"`
	Kind              DiscrepancyKind `json:"kind"`
	RequestedQuantity int32           `json:"requestedQuantity,omitempty"`
	AvailableStock    int32           `json:"availableStock,omitempty"`
	OldPriceCents     int64           `json:"oldPriceCents,omitempty"`
	NewPriceCents     int64           `json:"newPriceCents,omitempty"`
}

// CartValidation is the result of re-checking every cart line against the
// stock ledger. Validation never mutates the cart; callers decide remediation.
type CartValidation struct {
	IsValid       bool          `json:"isValid"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// ValidationFailedError carries the discrepancies that blocked a checkout so
// the handler layer can return them with structure.
type ValidationFailedError struct {
	Discrepancies []Discrepancy
}

func (e *ValidationFailedError) Error() string {
	return "cart validation failed"
}

// InsufficientStockError reports that a requested quantity exceeds what the
// ledger currently holds. Carries the available count so callers can offer
// remediation.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// =============================================================================
// CART STORE
// =============================================================================

// CartStore persists cart aggregates whole. Save replaces the stored state
// with the given aggregate (upsert).
type CartStore interface {
	// Get loads the cart for a user. Returns ErrCartNotFound when the user
	// has never had a cart.
	Get(ctx context.Context, userID string) (*Cart, error)

	// Save upserts the full cart aggregate, lines included.
	Save(ctx context.Context, cart *Cart) error
}
