package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Addresses are
// stored as JSONB; order lines live in order_items and are written once at
// creation, never updated.
type OrderStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that OrderStore implements domain.OrderStore.
var _ domain.OrderStore = (*OrderStore)(nil)

// NewOrderStore creates a PostgreSQL-backed order store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order row and its line rows in one transaction.
func (s *OrderStore) Create(ctx context.Context, order *domain.Order) error {
	shippingAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode shipping address")
	}
	billingAddr, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to encode billing address")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Internal(err, "order.create", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
		INSERT INTO orders (
			id, order_number, user_id, status, payment_status, payment_method,
			subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents,
			shipping_address, billing_address,
			transaction_id, gateway, paid_at,
			shipping_method, carrier, tracking_number, estimated_delivery, shipped_at, delivered_at,
			notes, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13,
			$14, $15, $16,
			$17, $18, $19, $20, $21, $22,
			$23, $24, $25
		)`

	if _, err := tx.Exec(ctx, insertOrder,
		order.ID, order.OrderNumber, order.UserID,
		string(order.Status), string(order.PaymentStatus), string(order.PaymentMethod),
		order.Pricing.SubtotalCents, order.Pricing.TaxCents, order.Pricing.ShippingCents,
		order.Pricing.DiscountCents, order.Pricing.TotalCents,
		shippingAddr, billingAddr,
		nullString(order.Payment.TransactionID), nullString(order.Payment.Gateway), order.Payment.PaidAt,
		order.Shipping.Method, nullString(order.Shipping.Carrier), nullString(order.Shipping.TrackingNumber),
		order.Shipping.EstimatedDelivery, order.Shipping.ShippedAt, order.Shipping.DeliveredAt,
		nullString(order.Notes), order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return domain.Internal(err, "order.create", "failed to insert order")
	}

	const insertItem = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents,
			line_total_cents, product_name, product_sku, product_image_url, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for i, line := range order.Lines {
		if _, err := tx.Exec(ctx, insertItem,
			order.ID,
			line.ProductID,
			line.Quantity,
			line.UnitPriceCents,
			line.LineTotalCents,
			line.Product.Name,
			line.Product.SKU,
			line.Product.ImageURL,
			i,
		); err != nil {
			return domain.Internal(err, "order.create", "failed to insert order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "order.create", "failed to commit transaction")
	}
	return nil
}

const orderColumns = `
	id, order_number, user_id, status, payment_status, payment_method,
	subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents,
	shipping_address, billing_address,
	transaction_id, gateway, paid_at,
	shipping_method, carrier, tracking_number, estimated_delivery, shipped_at, delivered_at,
	notes, created_at, updated_at`

// Get loads an order by id.
func (s *OrderStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByNumber loads an order by its display number.
func (s *OrderStore) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	return s.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
}

func (s *OrderStore) getOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.Internal(err, "order.get", "failed to load order")
	}

	if err := s.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Update persists the mutable order fields. Lines are never rewritten.
func (s *OrderStore) Update(ctx context.Context, order *domain.Order) error {
	const q = `
		UPDATE orders SET
			status = $2,
			payment_status = $3,
			transaction_id = $4,
			gateway = $5,
			paid_at = $6,
			carrier = $7,
			tracking_number = $8,
			shipped_at = $9,
			delivered_at = $10,
			notes = $11,
			updated_at = $12
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		order.ID,
		string(order.Status),
		string(order.PaymentStatus),
		nullString(order.Payment.TransactionID),
		nullString(order.Payment.Gateway),
		order.Payment.PaidAt,
		nullString(order.Shipping.Carrier),
		nullString(order.Shipping.TrackingNumber),
		order.Shipping.ShippedAt,
		order.Shipping.DeliveredAt,
		nullString(order.Notes),
		order.UpdatedAt,
	)
	if err != nil {
		return domain.Internal(err, "order.update", "failed to update order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

// ListByUser returns a user's orders newest first, with optional status
// filter and paging.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, filter domain.OrderFilter) ([]*domain.Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ` + itoa(limit) + ` OFFSET ` + itoa(offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "order.list", "failed to list orders")
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Internal(err, "order.list", "failed to scan order")
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "order.list", "failed to read orders")
	}

	for _, order := range orders {
		if err := s.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *OrderStore) loadItems(ctx context.Context, order *domain.Order) error {
	const q = `
		SELECT product_id, quantity, unit_price_cents, line_total_cents,
			product_name, product_sku, product_image_url
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`

	rows, err := s.pool.Query(ctx, q, order.ID)
	if err != nil {
		return domain.Internal(err, "order.get", "failed to load order items")
	}
	defer rows.Close()

	order.Lines = []domain.OrderLine{}
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ProductID,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.LineTotalCents,
			&line.Product.Name,
			&line.Product.SKU,
			&line.Product.ImageURL,
		); err != nil {
			return domain.Internal(err, "order.get", "failed to scan order item")
		}
		order.Lines = append(order.Lines, line)
	}
	return rows.Err()
}

// scanOrder reads one order row in orderColumns order.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order                       domain.Order
		status, payStatus, payMethod string
		shippingAddr, billingAddr   []byte
		txnID, gateway              *string
		carrier, tracking, notes    *string
	)

	if err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID,
		&status, &payStatus, &payMethod,
		&order.Pricing.SubtotalCents, &order.Pricing.TaxCents, &order.Pricing.ShippingCents,
		&order.Pricing.DiscountCents, &order.Pricing.TotalCents,
		&shippingAddr, &billingAddr,
		&txnID, &gateway, &order.Payment.PaidAt,
		&order.Shipping.Method, &carrier, &tracking,
		&order.Shipping.EstimatedDelivery, &order.Shipping.ShippedAt, &order.Shipping.DeliveredAt,
		&notes, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatus(status)
	order.PaymentStatus = domain.PaymentStatus(payStatus)
	order.PaymentMethod = domain.PaymentMethod(payMethod)
	order.Payment.TransactionID = deref(txnID)
	order.Payment.Gateway = deref(gateway)
	order.Shipping.Carrier = deref(carrier)
	order.Shipping.TrackingNumber = deref(tracking)
	order.Notes = deref(notes)

	if err := json.Unmarshal(shippingAddr, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingAddr, &order.BillingAddress); err != nil {
		return nil, err
	}

	return &order, nil
}
