package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smertin-nikita/market/internal/domain"
	"github.com/smertin-nikita/market/internal/service"
)

// OrderService is what the handlers need from the order layer.
type OrderService interface {
	Basket(ctx context.Context, actor *domain.User) (*domain.Order, error)
	AddBasketItem(ctx context.Context, actor *domain.User, input service.ItemInput) (*domain.Order, error)
	UpdateBasketItem(ctx context.Context, actor *domain.User, itemID int64, quantity int) (*domain.Order, error)
	RemoveBasketItem(ctx context.Context, actor *domain.User, itemID int64) (*domain.Order, error)
	Confirm(ctx context.Context, actor *domain.User) (*domain.Order, error)
	CreateOrder(ctx context.Context, actor *domain.User, items []service.ItemInput) (*domain.Order, error)
	GetOrder(ctx context.Context, actor *domain.User, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, actor *domain.User, status *domain.OrderStatus) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, actor *domain.User, orderID int64, input service.UpdateOrderInput) (*domain.Order, error)
	DeleteOrder(ctx context.Context, actor *domain.User, orderID int64) error
}

type OrderHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewOrderHandler(svc OrderService, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type ItemDTO struct {
	ProductInfoID int64 `json:"product_info_id"`
	Quantity      int   `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	OrderItems []ItemDTO `json:"order_items"`
}

type UpdateOrderRequestDTO struct {
	Status     *string    `json:"status"`
	OrderItems *[]ItemDTO `json:"order_items"`
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.OrderStatus(raw)
		status = &s
	}

	orders, err := h.svc.ListOrders(ctx, user, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	orderID, ok := orderIDFromURL(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(ctx, user, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// Create appends the supplied line items to the caller's current-or-new
// basket.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.svc.CreateOrder(ctx, user, toInputs(req.OrderItems))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	orderID, ok := orderIDFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	input := service.UpdateOrderInput{}
	if req.Status != nil {
		input.Status = domain.OrderStatus(*req.Status)
	}
	if req.OrderItems != nil {
		input.Items = toInputs(*req.OrderItems)
		input.ItemsSet = true
	}

	order, err := h.svc.UpdateOrder(ctx, user, orderID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := userFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing user authentication")
		return
	}

	orderID, ok := orderIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteOrder(ctx, user, orderID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func orderIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toInputs(items []ItemDTO) []service.ItemInput {
	inputs := make([]service.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = service.ItemInput{
			ProductInfoID: item.ProductInfoID,
			Quantity:      item.Quantity,
		}
	}
	return inputs
}
