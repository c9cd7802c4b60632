package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart aborts a checkout with nothing to check out, before any
	// mutation.
	ErrEmptyCart = errors.New("no items to checkout")

	// ErrInvalidStatus covers both unknown status values and transitions
	// outside the allowed graph.
	ErrInvalidStatus = errors.New("invalid status")

	ErrNotFound = errors.New("order not found")
)

// InsufficientStockError aborts the whole checkout; no decrement or order
// row from the attempt survives.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Size        string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %s in size %s: available %d, requested %d",
		e.ProductName, e.Size, e.Available, e.Requested)
}
