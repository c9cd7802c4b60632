// Package memory provides an in-memory orders.Store used by tests. A
// transaction runs on a deep copy of the state under the store lock and is
// copied back only when the callback succeeds, so failed checkouts leave
// nothing behind and concurrent transactions serialize.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/averith/go-shop-backend/internal/cart"
	"github.com/averith/go-shop-backend/internal/orders"
)

type product struct {
	id    string
	name  string
	stock []byte
}

type state struct {
	products map[string]product
	lines    map[string]cart.Line
	orders   map[string]orders.Order // items kept separately
	items    map[string][]orders.OrderItem
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]product, len(s.products)),
		lines:    make(map[string]cart.Line, len(s.lines)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		items:    make(map[string][]orders.OrderItem, len(s.items)),
	}
	for k, p := range s.products {
		p.stock = slices.Clone(p.stock)
		c.products[k] = p
	}
	for k, l := range s.lines {
		c.lines[k] = l
	}
	for k, o := range s.orders {
		o.Items = nil
		c.orders[k] = o
	}
	for k, its := range s.items {
		c.items[k] = slices.Clone(its)
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st state
}

func New() *Store {
	return &Store{st: state{
		products: map[string]product{},
		lines:    map[string]cart.Line{},
		orders:   map[string]orders.Order{},
		items:    map[string][]orders.OrderItem{},
	}}
}

// SeedProduct registers a product with a raw stock_by_size value.
func (s *Store) SeedProduct(id, name string, stockBySize string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[id] = product{id: id, name: name, stock: []byte(stockBySize)}
}

func (s *Store) SeedCartLine(l cart.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.lines[l.ID] = l
}

// Stock returns the current raw stock_by_size for a product.
func (s *Store) Stock(productID string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.products[productID].stock)
}

// CartSize returns how many lines a user has left.
func (s *Store) CartSize(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.st.lines {
		if l.UserID == userID {
			n++
		}
	}
	return n
}

// OrderCount counts persisted orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.st = *work
	return nil
}

type memTx struct{ st *state }

func (t *memTx) CartLines(ctx context.Context, userID string, itemIDs []string) ([]cart.Line, error) {
	var out []cart.Line
	for _, l := range t.st.lines {
		if l.UserID != userID {
			continue
		}
		if len(itemIDs) > 0 && !slices.Contains(itemIDs, l.ID) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) DeleteCartLines(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(t.st.lines, id)
	}
	return nil
}

func (t *memTx) ProductForUpdate(ctx context.Context, productID string) (*orders.LockedProduct, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &orders.LockedProduct{ID: p.id, Name: p.name, StockBySize: slices.Clone(p.stock)}, nil
}

func (t *memTx) UpdateProductStock(ctx context.Context, productID string, stockBySize []byte) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrNotFound
	}
	p.stock = slices.Clone(stockBySize)
	t.st.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	cp := *o
	cp.Items = nil
	t.st.orders[o.ID] = cp
	return nil
}

func (t *memTx) InsertOrderItem(ctx context.Context, it *orders.OrderItem) error {
	t.st.items[it.OrderID] = append(t.st.items[it.OrderID], *it)
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID string, status orders.Status, returnReason *string) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	if returnReason != nil {
		o.ReturnReason = returnReason
	}
	t.st.orders[orderID] = o
	return nil
}

func (t *memTx) OrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	return slices.Clone(t.st.items[orderID]), nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.Items = slices.Clone(s.st.items[orderID])
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, userID string) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.st.orders {
		if userID != "" && o.UserID != userID {
			continue
		}
		o.Items = slices.Clone(s.st.items[o.ID])
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return strings.Compare(out[i].ID, out[j].ID) < 0
	})
	return out, nil
}
