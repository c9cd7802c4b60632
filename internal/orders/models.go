package orders

import "time"

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	Status          Status      `json:"status"` // see status.go
	FirstAddress    string      `json:"first_address"`
	SecondAddress   *string     `json:"second_address,omitempty"`
	IsOfficeAddress bool        `json:"is_office_address"`
	ReturnReason    *string     `json:"return_reason,omitempty"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderItem is the audit copy of a cart line at checkout time. Never
// deleted once created; price is frozen at purchase.
type OrderItem struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Size        string `json:"size"` // empty for sizeless products
	Quantity    int    `json:"quantity"`
	PriceCents  int    `json:"price_cents"` // price at purchase
}
