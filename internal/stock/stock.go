// Package stock defines the ledger contract the checkout flow depends on for
// product reads and quantity adjustments, with in-memory and Postgres
// implementations.
package stock

import (
	"context"

	"github.com/fjellmark/njord/internal/domain"
)

// Op selects how AdjustStock applies its amount.
type Op string

const (
	OpAdd      Op = "add"
	OpSubtract Op = "subtract"
	OpSet      Op = "set"
)

var (
	// ErrProductNotFound is returned when a product id is unknown to the ledger.
	ErrProductNotFound = &domain.Error{Code: domain.ENOTFOUND, Message: "Product not found"}

	// ErrInvalidOp is returned for an adjustment op outside add/subtract/set.
	ErrInvalidOp = &domain.Error{Code: domain.EINVALID, Message: "Invalid stock adjustment operation"}
)

// Product is the ledger's view of a catalog entry: current price, available
// quantity, and the display snapshot carts copy from.
type Product struct {
	ID         string
	PriceCents int64
	Stock      int32
	Snapshot   domain.ProductSnapshot
}

// Ledger is the stock contract. Subtract clamps at zero and never reports
// insufficiency; callers that care must read first. Adjustments for the same
// product must be applied read-modify-write atomically by the implementation.
type Ledger interface {
	// GetProduct returns the current ledger entry for a product, or
	// ErrProductNotFound.
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// AdjustStock applies amount under op and returns the new stock level.
	AdjustStock(ctx context.Context, productID string, amount int32, op Op) (int32, error)
}
