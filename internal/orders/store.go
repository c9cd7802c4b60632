package orders

import (
	"context"
	"encoding/json"

	"github.com/averith/go-shop-backend/internal/cart"
)

// LockedProduct is a product row held under a row lock for the remainder of
// the enclosing transaction. Stock read through it cannot change underneath
// the caller.
type LockedProduct struct {
	ID          string
	Name        string
	StockBySize json.RawMessage
}

// Tx is the unit-of-work boundary for checkout and status transitions.
// Every method runs inside one all-or-nothing transaction; returning an
// error from the WithTx callback rolls back all of them.
type Tx interface {
	// CartLines returns the user's lines in creation order, optionally
	// filtered to a subset of line ids.
	CartLines(ctx context.Context, userID string, itemIDs []string) ([]cart.Line, error)
	DeleteCartLines(ctx context.Context, ids []string) error

	// ProductForUpdate locks the product row until commit or rollback.
	ProductForUpdate(ctx context.Context, productID string) (*LockedProduct, error)
	UpdateProductStock(ctx context.Context, productID string, stockBySize []byte) error

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, it *OrderItem) error

	OrderForUpdate(ctx context.Context, orderID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status Status, returnReason *string) error
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
}

// Store is the persistence boundary of the orders service.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// ListOrders returns orders newest first; empty userID lists all users.
	ListOrders(ctx context.Context, userID string) ([]Order, error)
}
