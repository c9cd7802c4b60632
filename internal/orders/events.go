package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced   = "OrderPlaced"
	EventStatusChanged = "OrderStatusChanged"
	EventOrderReturned = "OrderReturned"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID  string `json:"product_id"`
	Size       string `json:"size,omitempty"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    string     `json:"order_id"`
	UserID     string     `json:"user_id"`
	Items      []ItemLine `json:"items"`
	TotalCents int        `json:"total_cents"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type RestockedItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type OrderReturnedPayload struct {
	OrderID string          `json:"order_id"`
	Reason  string          `json:"reason,omitempty"`
	Items   []RestockedItem `json:"items,omitempty"`
}
