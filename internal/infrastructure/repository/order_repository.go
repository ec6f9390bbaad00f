package repository

import (
	"context"
	"errors"
	"fmt"

	"storefront-customizer-app/internal/domain"
	"storefront-customizer-app/internal/ports"

	"github.com/jackc/pgx/v5"
)

type pgOrderRepository struct {
	db *DB
}

// NewOrderRepository stores orders and their items in postgres.
func NewOrderRepository(db *DB) ports.OrderRepository {
	return &pgOrderRepository{db: db}
}

// UpsertOrder replaces the order header and items in one transaction.
// A redelivered order keeps its stored status and store hash; order.Status
// is set to the stored value on return.
func (r *pgOrderRepository) UpsertOrder(ctx context.Context, order *domain.Order) (bool, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin order upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsertOrder = `
INSERT INTO orders (shop, order_id, order_number, total_price, customer_id, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, now(), now())
ON CONFLICT (shop, order_id) DO UPDATE
SET order_number = EXCLUDED.order_number,
    total_price  = EXCLUDED.total_price,
    customer_id  = EXCLUDED.customer_id,
    payload      = EXCLUDED.payload,
    updated_at   = now()
RETURNING (xmax = 0) AS inserted, status, store_hash, created_at, updated_at`

	status := order.Status
	if status == "" {
		status = domain.OrderReceived
	}
	var (
		inserted bool
		stored   string
	)
	err = tx.QueryRow(ctx, upsertOrder,
		order.Shop, order.OrderID, order.OrderNumber, order.TotalPrice, order.CustomerID,
		string(status), jsonText(order.Payload),
	).Scan(&inserted, &stored, &order.StoreHash, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order: %w", err)
	}
	order.Status = domain.OrderStatus(stored)

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE shop = $1 AND order_id = $2`, order.Shop, order.OrderID); err != nil {
		return false, fmt.Errorf("failed to clear order items: %w", err)
	}

	const insertItem = `
INSERT INTO order_items (shop, order_id, line_item_id, product_id, variant_id, variant_title, name, quantity, design_id, preview_url, design_area, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)`
	batch := &pgx.Batch{}
	for _, it := range order.Items {
		batch.Queue(insertItem,
			order.Shop, order.OrderID, it.LineItemID, it.ProductID, it.VariantID, it.VariantTitle,
			it.Name, it.Quantity, it.DesignID, it.PreviewURL, it.DesignArea, jsonText(it.Payload))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("failed to insert order items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit order upsert: %w", err)
	}
	return inserted, nil
}

func (r *pgOrderRepository) GetOrder(ctx context.Context, shop string, orderID int64) (*domain.Order, error) {
	const q = `
SELECT shop, order_id, order_number, total_price, customer_id, store_hash, status, payload, created_at, updated_at
FROM orders WHERE shop = $1 AND order_id = $2`
	o, err := scanOrder(r.db.Pool.QueryRow(ctx, q, shop, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	const items = `
SELECT line_item_id, product_id, variant_id, variant_title, name, quantity, design_id, preview_url, design_area, payload
FROM order_items WHERE shop = $1 AND order_id = $2 ORDER BY line_item_id`
	rows, err := r.db.Pool.Query(ctx, items, shop, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		var payload []byte
		if err := rows.Scan(&it.LineItemID, &it.ProductID, &it.VariantID, &it.VariantTitle, &it.Name,
			&it.Quantity, &it.DesignID, &it.PreviewURL, &it.DesignArea, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		it.Payload = payload
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order items cursor: %w", err)
	}
	return o, nil
}

func (r *pgOrderRepository) UpdateOrderStatus(ctx context.Context, shop string, orderID int64, storeHash string, status domain.OrderStatus) error {
	const q = `
UPDATE orders
SET status = $3, store_hash = COALESCE(NULLIF($4, ''), store_hash), updated_at = now()
WHERE shop = $1 AND order_id = $2`
	if _, err := r.db.Pool.Exec(ctx, q, shop, orderID, string(status), storeHash); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (r *pgOrderRepository) ListCustomerOrders(ctx context.Context, shop string, customerID int64) ([]*domain.Order, error) {
	const q = `
SELECT shop, order_id, order_number, total_price, customer_id, store_hash, status, payload, created_at, updated_at
FROM orders WHERE shop = $1 AND customer_id = $2 ORDER BY order_id`
	rows, err := r.db.Pool.Query(ctx, q, shop, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders cursor: %w", err)
	}
	return orders, nil
}

func (r *pgOrderRepository) DeleteCustomerOrders(ctx context.Context, shop string, customerID int64) (int64, error) {
	ct, err := r.db.Pool.Exec(ctx, `DELETE FROM orders WHERE shop = $1 AND customer_id = $2`, shop, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete customer orders: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgOrderRepository) DeleteShopOrders(ctx context.Context, shop string) (int64, error) {
	ct, err := r.db.Pool.Exec(ctx, `DELETE FROM orders WHERE shop = $1`, shop)
	if err != nil {
		return 0, fmt.Errorf("failed to delete shop orders: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *pgOrderRepository) ListOrdersByStatus(ctx context.Context, statuses []domain.OrderStatus, limit int) ([]*domain.Order, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	const q = `
SELECT shop, order_id, order_number, total_price, customer_id, store_hash, status, payload, created_at, updated_at
FROM orders WHERE status = ANY($1) ORDER BY created_at, order_id LIMIT NULLIF($2::int, 0)`
	rows, err := r.db.Pool.Query(ctx, q, names, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o       domain.Order
		status  string
		payload []byte
	)
	if err := row.Scan(&o.Shop, &o.OrderID, &o.OrderNumber, &o.TotalPrice, &o.CustomerID,
		&o.StoreHash, &status, &payload, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.Payload = payload
	return &o, nil
}

func jsonText(b []byte) string {
	if len(b) == 0 {
		return "{}"
	}
	return string(b)
}
