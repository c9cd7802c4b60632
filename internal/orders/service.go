package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/averith/go-shop-backend/internal/logger"
	"github.com/averith/go-shop-backend/internal/stock"
)

// Service orchestrates checkout and order status transitions over a Store.
type Service struct {
	Store Store
}

type CheckoutInput struct {
	FirstAddress    string
	SecondAddress   *string
	IsOfficeAddress bool
	// ItemIDs optionally restricts checkout to a subset of cart lines.
	ItemIDs []string
}

// Checkout turns the user's cart lines into an order in one all-or-nothing
// transaction: snapshot, decrement stock per sized line, copy lines into
// order items, clear the cart. The first shortfall aborts everything.
func (s *Service) Checkout(ctx context.Context, userID string, in CheckoutInput) (*Order, error) {
	var order *Order
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		lines, err := tx.CartLines(ctx, userID, in.ItemIDs)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		now := time.Now().UTC()
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			Status:          StatusPending,
			FirstAddress:    in.FirstAddress,
			SecondAddress:   in.SecondAddress,
			IsOfficeAddress: in.IsOfficeAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		lineIDs := make([]string, 0, len(lines))
		for _, ln := range lines {
			lineIDs = append(lineIDs, ln.ID)

			p, err := tx.ProductForUpdate(ctx, ln.ProductID)
			if err != nil {
				return err
			}

			// Sizeless lines carry no per-size inventory and skip the ledger.
			if ln.Size != "" {
				if err := s.decrement(ctx, tx, o.ID, p, ln.Size, ln.Quantity); err != nil {
					return err
				}
			}

			it := &OrderItem{
				ID:          uuid.NewString(),
				OrderID:     o.ID,
				ProductID:   ln.ProductID,
				ProductName: p.Name,
				Size:        ln.Size,
				Quantity:    ln.Quantity,
				PriceCents:  ln.PriceCents, // price frozen at add time
			}
			if err := tx.InsertOrderItem(ctx, it); err != nil {
				return err
			}
			o.Items = append(o.Items, *it)
		}

		if err := tx.DeleteCartLines(ctx, lineIDs); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("checkout committed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Int("items", len(order.Items)))
	return order, nil
}

func (s *Service) decrement(ctx context.Context, tx Tx, orderID string, p *LockedProduct, size string, qty int) error {
	sizes, err := stock.Decode(p.StockBySize)
	if err != nil {
		return fmt.Errorf("product %s: %w", p.ID, err)
	}
	logger.Log.Info("stock decrement attempt",
		zap.String("order_id", orderID),
		zap.String("product_id", p.ID),
		zap.String("size", size),
		zap.Int("delta", -qty),
		zap.Int("available", sizes.Available(size)))

	remaining, err := sizes.TryDecrement(size, qty)
	var short *stock.InsufficientError
	if errors.As(err, &short) {
		logger.Log.Warn("stock decrement rejected",
			zap.String("order_id", orderID),
			zap.String("product_id", p.ID),
			zap.String("size", size),
			zap.Int("available", short.Available),
			zap.Int("requested", short.Requested))
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Size:        size,
			Available:   short.Available,
			Requested:   short.Requested,
		}
	}
	if err != nil {
		return err
	}

	enc, err := sizes.Encode()
	if err != nil {
		return err
	}
	if err := tx.UpdateProductStock(ctx, p.ID, enc); err != nil {
		return err
	}
	logger.Log.Info("stock decremented",
		zap.String("order_id", orderID),
		zap.String("product_id", p.ID),
		zap.String("size", size),
		zap.Int("delta", -qty),
		zap.Int("remaining", remaining))
	return nil
}

// Transition moves an order to newStatus along the allowed graph. Moving to
// "returned" restocks every sized item in the same transaction as the
// status write.
func (s *Service) Transition(ctx context.Context, orderID, newStatus, returnReason string) (*Order, error) {
	next, ok := ParseStatus(newStatus)
	if !ok {
		return nil, ErrInvalidStatus
	}
	err := s.Store.WithTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, next) {
			return ErrInvalidStatus
		}

		var reason *string
		if next == StatusReturned {
			items, err := tx.OrderItems(ctx, o.ID)
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.Size == "" {
					continue
				}
				if err := s.restock(ctx, tx, o.ID, it); err != nil {
					return err
				}
			}
			reason = &returnReason
		}
		return tx.UpdateOrderStatus(ctx, o.ID, next, reason)
	})
	if err != nil {
		return nil, err
	}
	logger.Log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("status", string(next)))
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) restock(ctx context.Context, tx Tx, orderID string, it OrderItem) error {
	p, err := tx.ProductForUpdate(ctx, it.ProductID)
	if err != nil {
		return err
	}
	sizes, err := stock.Decode(p.StockBySize)
	if err != nil {
		return fmt.Errorf("product %s: %w", p.ID, err)
	}
	n := sizes.Increment(it.Size, it.Quantity)
	enc, err := sizes.Encode()
	if err != nil {
		return err
	}
	if err := tx.UpdateProductStock(ctx, p.ID, enc); err != nil {
		return err
	}
	logger.Log.Info("stock restocked",
		zap.String("order_id", orderID),
		zap.String("product_id", p.ID),
		zap.String("size", it.Size),
		zap.Int("delta", it.Quantity),
		zap.Int("available", n))
	return nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListOrders(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.Store.ListOrders(ctx, "")
}
