package stock

import (
	"context"
	"errors"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger implements Ledger over the products table. Adjustments are
// single UPDATE statements, so concurrent orders against the same product
// serialize on the row without lost updates.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger creates a Postgres-backed stock ledger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

// GetProduct loads a product row.
func (l *PostgresLedger) GetProduct(ctx context.Context, productID string) (*Product, error) {
	const q = `
		SELECT id, name, sku, image_url, price_cents, stock
		FROM products
		WHERE id = $1`

	var p Product
	err := l.pool.QueryRow(ctx, q, productID).Scan(
		&p.ID,
		&p.Snapshot.Name,
		&p.Snapshot.SKU,
		&p.Snapshot.ImageURL,
		&p.PriceCents,
		&p.Stock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, domain.Internal(err, "stock.getProduct", "failed to load product")
	}

	return &p, nil
}

// AdjustStock applies the adjustment in one statement and returns the new
// stock level. Subtract clamps at zero with GREATEST.
func (l *PostgresLedger) AdjustStock(ctx context.Context, productID string, amount int32, op Op) (int32, error) {
	var q string
	switch op {
	case OpAdd:
		q = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1 RETURNING stock`
	case OpSubtract:
		q = `UPDATE products SET stock = GREATEST(0, stock - $2), updated_at = now() WHERE id = $1 RETURNING stock`
	case OpSet:
		q = `UPDATE products SET stock = GREATEST(0, $2), updated_at = now() WHERE id = $1 RETURNING stock`
	default:
		return 0, ErrInvalidOp
	}

	var newStock int32
	err := l.pool.QueryRow(ctx, q, productID, amount).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, domain.Internal(err, "stock.adjust", "failed to adjust stock")
	}

	return newStock, nil
}
