package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smertin-nikita/market/internal/service"
)

// BasketHandler serves the caller's own basket. Accessing it creates the
// basket lazily, so there is no not-found case on the collection routes.
type BasketHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewBasketHandler(svc OrderService, timeout time.Duration) *BasketHandler {
	return &BasketHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductInfoID int64 `json:"product_info_id"`
	Quantity      int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

func (h *BasketHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	basket, err := h.svc.Basket(ctx, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

func (h *BasketHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductInfoID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_info_id", "product_info_id must be positive")
		return
	}

	basket, err := h.svc.AddBasketItem(ctx, user, service.ItemInput{
		ProductInfoID: req.ProductInfoID,
		Quantity:      req.Quantity,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, basket)
}

func (h *BasketHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	itemID, ok := itemIDFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	basket, err := h.svc.UpdateBasketItem(ctx, user, itemID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

func (h *BasketHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	itemID, ok := itemIDFromURL(w, r)
	if !ok {
		return
	}

	basket, err := h.svc.RemoveBasketItem(ctx, user, itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, basket)
}

// Confirm places the basket as a NEW order.
func (h *BasketHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	order, err := h.svc.Confirm(ctx, user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func itemIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "item_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return 0, false
	}
	return id, true
}
