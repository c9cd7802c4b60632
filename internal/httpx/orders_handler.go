package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/averith/go-shop-backend/internal/kafka"
	"github.com/averith/go-shop-backend/internal/orders"
	"github.com/averith/go-shop-backend/internal/redisx"
)

// Publisher is satisfied by kafka.Producer; handlers publish after commit.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Svc            *orders.Service
	ProducerPlaced Publisher
	ProducerStatus Publisher
	ProducerReturn Publisher
	Redis          *redis.Client
	Service        string
}

type CheckoutReq struct {
	FirstAddress    string   `json:"first_address"`
	SecondAddress   *string  `json:"second_address"`
	IsOfficeAddress bool     `json:"is_office_address"`
	ItemIDs         []string `json:"item_ids"`
}

type StatusUpdateReq struct {
	Status       string `json:"status"`
	ReturnReason string `json:"return_reason"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Post("/orders/checkout", h.checkout)
		r.Get("/orders/mine", h.listMine)
		r.Get("/orders", h.listAll)
		r.Get("/orders/{id}", h.getOrder)
		r.Get("/orders/{id}/status", h.getStatus)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.FirstAddress == "" {
		writeDetail(w, http.StatusBadRequest, "first_address is required")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()
	userID := UserID(r)

	// Idempotency shortcut: a replayed checkout returns the original order.
	idemKey := ""
	if k := r.Header.Get("X-Idempotency-Key"); k != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemCheckout, k)
		if orderID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && orderID != "" {
			if o, err := h.Svc.Get(ctx, orderID); err == nil {
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	o, err := h.Svc.Checkout(ctx, userID, orders.CheckoutInput{
		FirstAddress:    req.FirstAddress,
		SecondAddress:   req.SecondAddress,
		IsOfficeAddress: req.IsOfficeAddress,
		ItemIDs:         req.ItemIDs,
	})
	if err != nil {
		var short *orders.InsufficientStockError
		switch {
		case errors.Is(err, orders.ErrEmptyCart):
			writeDetail(w, http.StatusBadRequest, "No items to checkout")
		case errors.As(err, &short):
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf(
				"Not enough stock for %s in size %s. Available: %d, Requested: %d",
				short.ProductName, short.Size, short.Available, short.Requested))
		default:
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheStatus(r, o.ID, o.Status)
	h.publish(h.ProducerPlaced, r, orders.EventOrderPlaced, o.ID, placedPayload(o))

	writeJSON(w, http.StatusCreated, o)
}

func placedPayload(o *orders.Order) orders.OrderPlacedPayload {
	p := orders.OrderPlacedPayload{OrderID: o.ID, UserID: o.UserID}
	for _, it := range o.Items {
		p.Items = append(p.Items, orders.ItemLine{
			ProductID:  it.ProductID,
			Size:       it.Size,
			Qty:        it.Quantity,
			PriceCents: it.PriceCents,
		})
		p.TotalCents += it.PriceCents * it.Quantity
	}
	return p
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	if !IsAdmin(r) {
		writeDetail(w, http.StatusForbidden, "Admin only")
		return
	}
	orderID := chi.URLParam(r, "id")

	var req StatusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	o, err := h.Svc.Transition(ctx, orderID, req.Status, req.ReturnReason)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidStatus):
			writeDetail(w, http.StatusBadRequest, "Invalid status")
		case errors.Is(err, orders.ErrNotFound):
			writeDetail(w, http.StatusNotFound, "Not found")
		default:
			writeDetail(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.cacheStatus(r, o.ID, o.Status)
	h.publish(h.ProducerStatus, r, orders.EventStatusChanged, o.ID,
		orders.StatusChangedPayload{OrderID: o.ID, Status: string(o.Status)})
	if o.Status == orders.StatusReturned {
		h.publish(h.ProducerReturn, r, orders.EventOrderReturned, o.ID, returnedPayload(o))
	}

	writeJSON(w, http.StatusOK, o)
}

func returnedPayload(o *orders.Order) orders.OrderReturnedPayload {
	p := orders.OrderReturnedPayload{OrderID: o.ID}
	if o.ReturnReason != nil {
		p.Reason = *o.ReturnReason
	}
	for _, it := range o.Items {
		if it.Size == "" {
			continue
		}
		p.Items = append(p.Items, orders.RestockedItem{ProductID: it.ProductID, Size: it.Size, Qty: it.Quantity})
	}
	return p
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context5s(r)
	defer cancel()

	list, err := h.Svc.ListMine(ctx, UserID(r))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	if !IsAdmin(r) {
		writeDetail(w, http.StatusForbidden, "Admin only")
		return
	}
	ctx, cancel := context5s(r)
	defer cancel()

	list, err := h.Svc.ListAll(ctx)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context5s(r)
	defer cancel()

	o, err := h.Svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	if o.UserID != UserID(r) && !IsAdmin(r) {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getStatus serves the status poll cheaply from redis, falling back to the
// store and refilling the cache.
func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context5s(r)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Svc.Get(ctx, orderID)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	body := map[string]any{"status": o.Status}
	b, _ := json.Marshal(body)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, json.RawMessage(b))
}

func (h *OrdersHandler) cacheStatus(r *http.Request, orderID string, status orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b, _ := json.Marshal(map[string]orders.Status{"status": status})
	_ = h.Redis.Set(r.Context(), key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(p Publisher, r *http.Request, eventType, orderID string, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
