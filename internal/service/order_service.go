package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/smertin-nikita/market/internal/cache"
	"github.com/smertin-nikita/market/internal/domain"
	"github.com/smertin-nikita/market/internal/policy"
	"github.com/smertin-nikita/market/internal/repository"
)

// ItemInput is an (inventory record, requested quantity) pair supplied by the
// caller.
type ItemInput struct {
	ProductInfoID int64 `json:"product_info_id"`
	Quantity      int   `json:"quantity"`
}

// UpdateOrderInput carries an order PATCH. Status and Items are both
// optional; the policy layer decides which of them the actor may touch.
type UpdateOrderInput struct {
	Status domain.OrderStatus
	Items  []ItemInput
	// ItemsSet distinguishes "no items key" from "empty items list".
	ItemsSet bool
}

type OrderService struct {
	repo   repository.OrderRepository
	cache  cache.BasketCache
	logger *zap.Logger
	sfg    singleflight.Group // collapses concurrent basket reads per owner
}

func NewOrderService(repo repository.OrderRepository, basketCache cache.BasketCache, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:   repo,
		cache:  basketCache,
		logger: logger,
	}
}

// Basket returns the actor's basket, creating it lazily on first access.
func (s *OrderService) Basket(ctx context.Context, actor *domain.User) (*domain.Order, error) {
	v, err, _ := s.sfg.Do(strconv.FormatInt(actor.ID, 10), func() (interface{}, error) {
		basket, err := s.cache.Get(ctx, actor.ID)
		if err == nil {
			return basket, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("basket cache get failed", zap.Int64("owner_id", actor.ID), zap.Error(err))
		}

		basket, err = s.repo.GetOrCreateBasket(ctx, actor.ID)
		if err != nil {
			return nil, err
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, actor.ID, basket); errSet != nil {
				s.logger.Warn("basket cache set failed", zap.Int64("owner_id", actor.ID), zap.Error(errSet))
			}
		}()

		return basket, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

// AddBasketItem appends one line item to the actor's basket at the inventory
// record's current unit price.
func (s *OrderService) AddBasketItem(ctx context.Context, actor *domain.User, input ItemInput) (*domain.Order, error) {
	if input.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	basket, err := s.repo.GetOrCreateBasket(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.AppendItems(ctx, basket.ID, toItems([]ItemInput{input}))
	if err != nil {
		return nil, err
	}
	s.invalidate(actor.ID)
	return order, nil
}

func (s *OrderService) UpdateBasketItem(ctx context.Context, actor *domain.User, itemID int64, quantity int) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	basket, err := s.repo.GetOrCreateBasket(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.UpdateItemQuantity(ctx, basket.ID, itemID, quantity)
	if err != nil {
		return nil, err
	}
	s.invalidate(actor.ID)
	return order, nil
}

func (s *OrderService) RemoveBasketItem(ctx context.Context, actor *domain.User, itemID int64) (*domain.Order, error) {
	basket, err := s.repo.GetOrCreateBasket(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.RemoveItem(ctx, basket.ID, itemID)
	if err != nil {
		return nil, err
	}
	s.invalidate(actor.ID)
	return order, nil
}

// Confirm places the actor's basket: the stock check, debit, amount
// recomputation and status write commit atomically in the repository.
func (s *OrderService) Confirm(ctx context.Context, actor *domain.User) (*domain.Order, error) {
	basket, err := s.repo.GetOrCreateBasket(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.ConfirmOrder(ctx, basket.ID)
	if err != nil {
		return nil, err
	}

	s.invalidate(actor.ID)
	s.logger.Info("basket confirmed",
		zap.Int64("order_id", order.ID),
		zap.Int64("owner_id", actor.ID),
		zap.String("amount", order.Amount.String()))
	return order, nil
}

// CreateOrder appends the supplied pairs to the actor's current-or-new basket.
func (s *OrderService) CreateOrder(ctx context.Context, actor *domain.User, items []ItemInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	basket, err := s.repo.GetOrCreateBasket(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.AppendItems(ctx, basket.ID, toItems(items))
	if err != nil {
		return nil, err
	}
	s.invalidate(actor.ID)
	return order, nil
}

// GetOrder retrieves one order. Orders outside the actor's visibility scope
// come back as not-found, never forbidden.
func (s *OrderService) GetOrder(ctx context.Context, actor *domain.User, orderID int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !policy.Visible(actor, order) {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders applies the list-level visibility filter: staff get every order
// except baskets, suppliers get their own orders plus placed orders carrying
// their shop's goods, everyone else gets only their own.
func (s *OrderService) ListOrders(ctx context.Context, actor *domain.User, status *domain.OrderStatus) ([]*domain.Order, error) {
	if status != nil && !status.Valid() {
		return nil, ErrBadStatus
	}

	filter := repository.OrderFilter{Status: status}
	switch {
	case actor.IsStaff:
		filter.ExcludeBasket = true
	case actor.IsSupplier:
		filter.SupplierID = &actor.ID
	default:
		filter.OwnerID = &actor.ID
	}
	return s.repo.ListOrders(ctx, filter)
}

// UpdateOrder handles the PATCH path: owners replace the line items of their
// basket, staff move placed orders between statuses. The policy rule set
// decides which; everything else is refused.
func (s *OrderService) UpdateOrder(ctx context.Context, actor *domain.User, orderID int64, input UpdateOrderInput) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !policy.Visible(actor, order) {
		return nil, repository.ErrOrderNotFound
	}

	if input.Status != "" && !input.Status.Valid() {
		return nil, ErrBadStatus
	}

	req := policy.Request{
		Action:     policy.ActionUpdate,
		NextStatus: input.Status,
		HasItems:   input.ItemsSet,
	}
	if allowed, rule := policy.UpdateRules().Allow(actor, order, req); !allowed {
		return nil, fmt.Errorf("%s: %w", rule, ErrForbidden)
	}

	if input.Status != "" {
		updated, err := s.repo.SetOrderStatus(ctx, orderID, input.Status)
		if err != nil {
			return nil, err
		}
		s.logger.Info("order status changed",
			zap.Int64("order_id", orderID),
			zap.String("from", order.Status.String()),
			zap.String("to", input.Status.String()),
			zap.Int64("actor_id", actor.ID))
		return updated, nil
	}

	if len(input.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	updated, err := s.repo.ReplaceItems(ctx, orderID, toItems(input.Items))
	if err != nil {
		return nil, err
	}
	s.invalidate(actor.ID)
	return updated, nil
}

// DeleteOrder removes an order; only the owner's basket qualifies.
func (s *OrderService) DeleteOrder(ctx context.Context, actor *domain.User, orderID int64) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !policy.Visible(actor, order) {
		return repository.ErrOrderNotFound
	}

	if allowed, rule := policy.DeleteRules().Allow(actor, order, policy.Request{Action: policy.ActionDelete}); !allowed {
		return fmt.Errorf("%s: %w", rule, ErrForbidden)
	}

	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.invalidate(order.OwnerID)
	return nil
}

func (s *OrderService) invalidate(ownerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		s.logger.Warn("basket cache invalidate failed", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

func toItems(inputs []ItemInput) []domain.OrderItem {
	items := make([]domain.OrderItem, len(inputs))
	for i, in := range inputs {
		items[i] = domain.OrderItem{
			ProductInfoID: in.ProductInfoID,
			Quantity:      in.Quantity,
		}
	}
	return items
}
