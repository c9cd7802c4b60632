// Package cart manages a user's cart lines. A line captures the product
// price at add time; checkout copies it into the order item so later catalog
// changes never affect a placed order.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("cart item not found")

type Line struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProductID  string    `json:"product_id"`
	Size       string    `json:"size"` // empty for sizeless products
	Quantity   int       `json:"quantity"`
	PriceCents int       `json:"price_cents"` // price at add time
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repo struct{ DB *pgxpool.Pool }

const lineCols = `id, user_id, product_id, size, quantity, price_cents, created_at, updated_at`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.UserID, &l.ProductID, &l.Size, &l.Quantity, &l.PriceCents, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *Repo) List(ctx context.Context, userID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+lineCols+` FROM cart_items WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Add inserts a line priced from the current catalog; adding the same
// product+size again sums quantities.
func (r *Repo) Add(ctx context.Context, userID, productID, size string, qty int) (*Line, error) {
	var price int
	err := r.DB.QueryRow(ctx, `SELECT price_cents FROM products WHERE id=$1`, productID).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l, err := scanLine(r.DB.QueryRow(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, size, quantity, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id, size) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		RETURNING `+lineCols,
		uuid.NewString(), userID, productID, size, qty, price))
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SetQuantity updates a line's quantity; qty < 1 removes the line and
// returns nil.
func (r *Repo) SetQuantity(ctx context.Context, userID, itemID string, qty int) (*Line, error) {
	if qty < 1 {
		return nil, r.Delete(ctx, userID, itemID)
	}
	l, err := scanLine(r.DB.QueryRow(ctx, `
		UPDATE cart_items SET quantity=$3, updated_at=now()
		WHERE id=$2 AND user_id=$1
		RETURNING `+lineCols, userID, itemID, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *Repo) Delete(ctx context.Context, userID, itemID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$2 AND user_id=$1`, userID, itemID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
