// Package stock implements the per-size inventory ledger. A product's
// stock_by_size column stores either a keyed map ({"S": 5}) or a list of
// records ([{"size":"S","quantity":5}]); Sizes hides the physical shape
// behind size-keyed access and re-encodes in the shape it was read.
package stock

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedStock signals a stock record that is neither a keyed map nor
// a list of {size, quantity} records. Callers must fail the whole operation
// rather than skip stock control.
var ErrMalformedStock = errors.New("malformed stock record")

// InsufficientError reports a failed decrement. The record is left untouched.
type InsufficientError struct {
	Size      string
	Available int
	Requested int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for size %q: available %d, requested %d", e.Size, e.Available, e.Requested)
}

type record struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// Sizes is a decoded stock_by_size value.
type Sizes struct {
	asList bool
	keys   []string // size labels in encounter order, for stable re-encoding
	qty    map[string]int
}

// Decode parses a raw stock_by_size value in either physical shape.
func Decode(raw []byte) (*Sizes, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrMalformedStock
	}
	s := &Sizes{qty: make(map[string]int)}
	switch trimmed[0] {
	case '{':
		var m map[string]int
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStock, err)
		}
		for k, v := range m {
			s.keys = append(s.keys, k)
			s.qty[k] = v
		}
	case '[':
		var recs []record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStock, err)
		}
		s.asList = true
		for _, r := range recs {
			if _, seen := s.qty[r.Size]; !seen {
				s.keys = append(s.keys, r.Size)
			}
			s.qty[r.Size] = r.Quantity
		}
	default:
		return nil, ErrMalformedStock
	}
	return s, nil
}

// Encode serializes back in the shape Decode saw.
func (s *Sizes) Encode() ([]byte, error) {
	if s.asList {
		recs := make([]record, 0, len(s.keys))
		for _, k := range s.keys {
			recs = append(recs, record{Size: k, Quantity: s.qty[k]})
		}
		return json.Marshal(recs)
	}
	m := make(map[string]int, len(s.qty))
	for k, v := range s.qty {
		m[k] = v
	}
	return json.Marshal(m)
}

// Available returns the quantity on hand for a size; absent sizes read as 0.
func (s *Sizes) Available(size string) int { return s.qty[size] }

// TryDecrement removes qty units of a size. On shortfall it returns an
// InsufficientError and leaves the record unchanged.
func (s *Sizes) TryDecrement(size string, qty int) (int, error) {
	avail := s.qty[size]
	if avail < qty {
		return avail, &InsufficientError{Size: size, Available: avail, Requested: qty}
	}
	s.set(size, avail-qty)
	return avail - qty, nil
}

// Increment adds qty units of a size, creating the size if absent. Restock
// has no upper bound.
func (s *Sizes) Increment(size string, qty int) int {
	n := s.qty[size] + qty
	s.set(size, n)
	return n
}

func (s *Sizes) set(size string, qty int) {
	if _, seen := s.qty[size]; !seen {
		s.keys = append(s.keys, size)
	}
	s.qty[size] = qty
}
