package postgres

import (
	"context"
	"errors"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CartStore implements domain.CartStore using PostgreSQL. Carts persist as
// one row in carts plus one row per line in cart_items; Save replaces the
// lines wholesale inside a transaction.
type CartStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that CartStore implements domain.CartStore.
var _ domain.CartStore = (*CartStore)(nil)

// NewCartStore creates a PostgreSQL-backed cart store.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Get loads a user's cart with its lines in insertion order.
func (s *CartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	const cartQuery = `
		SELECT user_id, total_items, total_price_cents, last_modified
		FROM carts
		WHERE user_id = $1`

	cart := &domain.Cart{}
	err := s.pool.QueryRow(ctx, cartQuery, userID).Scan(
		&cart.UserID,
		&cart.TotalItems,
		&cart.TotalPriceCents,
		&cart.LastModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCartNotFound
		}
		return nil, domain.Internal(err, "cart.get", "failed to load cart")
	}

	const itemsQuery = `
		SELECT product_id, quantity, unit_price_cents, product_name, product_sku, product_image_url
		FROM cart_items
		WHERE user_id = $1
		ORDER BY position`

	rows, err := s.pool.Query(ctx, itemsQuery, userID)
	if err != nil {
		return nil, domain.Internal(err, "cart.get", "failed to load cart items")
	}
	defer rows.Close()

	cart.Lines = []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(
			&line.ProductID,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.Product.Name,
			&line.Product.SKU,
			&line.Product.ImageURL,
		); err != nil {
			return nil, domain.Internal(err, "cart.get", "failed to scan cart item")
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "cart.get", "failed to read cart items")
	}

	return cart, nil
}

// Save upserts the cart row and replaces all line rows in one transaction.
func (s *CartStore) Save(ctx context.Context, cart *domain.Cart) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "cart.save", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	const upsertCart = `
		INSERT INTO carts (user_id, total_items, total_price_cents, last_modified)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			total_items = EXCLUDED.total_items,
			total_price_cents = EXCLUDED.total_price_cents,
			last_modified = EXCLUDED.last_modified`

	if _, err := tx.Exec(ctx, upsertCart,
		cart.UserID, cart.TotalItems, cart.TotalPriceCents, cart.LastModified,
	); err != nil {
		return domain.Internal(err, "cart.save", "failed to upsert cart")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cart.UserID); err != nil {
		return domain.Internal(err, "cart.save", "failed to clear cart items")
	}

	const insertItem = `
		INSERT INTO cart_items (user_id, product_id, quantity, unit_price_cents,
			product_name, product_sku, product_image_url, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, line := range cart.Lines {
		if _, err := tx.Exec(ctx, insertItem,
			cart.UserID,
			line.ProductID,
			line.Quantity,
			line.UnitPriceCents,
			line.Product.Name,
			line.Product.SKU,
			line.Product.ImageURL,
			i,
		); err != nil {
			return domain.Internal(err, "cart.save", "failed to insert cart item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "cart.save", "failed to commit transaction")
	}
	return nil
}
