package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averith/go-shop-backend/internal/cart"
)

// PgStore implements Store on postgres. Checkout and transition callbacks
// run inside a single transaction; product rows touched by the ledger are
// locked with FOR UPDATE so concurrent checkouts on the same size serialize.
type PgStore struct{ DB *pgxpool.Pool }

func (s *PgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) CartLines(ctx context.Context, userID string, itemIDs []string) ([]cart.Line, error) {
	q := `SELECT id, user_id, product_id, size, quantity, price_cents, created_at, updated_at
	      FROM cart_items WHERE user_id=$1`
	args := []any{userID}
	if len(itemIDs) > 0 {
		q += ` AND id = ANY($2)`
		args = append(args, itemIDs)
	}
	q += ` ORDER BY created_at`

	rows, err := t.tx.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []cart.Line
	for rows.Next() {
		var l cart.Line
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Size, &l.Quantity, &l.PriceCents, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteCartLines(ctx context.Context, ids []string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, ids)
	return err
}

func (t *pgTx) ProductForUpdate(ctx context.Context, productID string) (*LockedProduct, error) {
	var p LockedProduct
	err := t.tx.QueryRow(ctx, `SELECT id, name, stock_by_size FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.Name, &p.StockBySize)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("product not found: %s", productID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) UpdateProductStock(ctx context.Context, productID string, stockBySize []byte) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET stock_by_size=$2, updated_at=now() WHERE id=$1`,
		productID, stockBySize)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("stock update touched %d rows for product %s", ct.RowsAffected(), productID)
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, first_address, second_address, is_office_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.UserID, string(o.Status), o.FirstAddress, o.SecondAddress, o.IsOfficeAddress, o.CreatedAt, o.UpdatedAt)
	return err
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it *OrderItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items (id, order_id, product_id, size, quantity, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		it.ID, it.OrderID, it.ProductID, it.Size, it.Quantity, it.PriceCents)
	return err
}

func (t *pgTx) OrderForUpdate(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID string, status Status, returnReason *string) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, return_reason=COALESCE($3, return_reason), updated_at=now()
		WHERE id=$1`, orderID, string(status), returnReason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	return queryItems(ctx, t.tx, `WHERE i.order_id = $1`, orderID)
}

const orderCols = `SELECT id, user_id, status, first_address, second_address, is_office_address, return_reason, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.FirstAddress, &o.SecondAddress, &o.IsOfficeAddress, &o.ReturnReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryItems(ctx context.Context, q querier, where string, args ...any) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, p.name, i.size, i.quantity, i.price_cents
		FROM order_items i JOIN products p ON p.id = i.product_id `+where+` ORDER BY i.created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Size, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PgStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, orderCols+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := queryItems(ctx, s.DB, `WHERE i.order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *PgStore) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, orderCols+`
		FROM orders WHERE ($1 = '' OR user_id = $1) ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	ids := make([]string, 0)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.FirstAddress, &o.SecondAddress, &o.IsOfficeAddress, &o.ReturnReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := queryItems(ctx, s.DB, `WHERE i.order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byOrder := make(map[string][]OrderItem, len(out))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range out {
		out[i].Items = byOrder[out[i].ID]
	}
	return out, nil
}
