package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/averith/go-shop-backend/internal/cart"
)

type CartHandler struct {
	Repo *cart.Repo
}

type AddCartItemReq struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/cart", h.list)
		r.Post("/cart/items", h.add)
		r.Patch("/cart/items/{id}", h.update)
		r.Delete("/cart/items/{id}", h.remove)
	})
}

func (h *CartHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context5s(r)
	defer cancel()

	lines, err := h.Repo.List(ctx, UserID(r))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeDetail(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx, cancel := context5s(r)
	defer cancel()

	line, err := h.Repo.Add(ctx, UserID(r), req.ProductID, req.Size, req.Quantity)
	if errors.Is(err, cart.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, line)
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	line, err := h.Repo.SetQuantity(ctx, UserID(r), chi.URLParam(r, "id"), req.Quantity)
	if errors.Is(err, cart.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if line == nil { // quantity below 1 removes the line
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, line)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context5s(r)
	defer cancel()

	err := h.Repo.Delete(ctx, UserID(r), chi.URLParam(r, "id"))
	if errors.Is(err, cart.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
