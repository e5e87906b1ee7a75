package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smertin-nikita/market/internal/cache"
	"github.com/smertin-nikita/market/internal/domain"
	"github.com/smertin-nikita/market/internal/repository"
)

// mockOrderRepo implements repository.OrderRepository for testing.
type mockOrderRepo struct {
	mu sync.Mutex

	basket *domain.Order
	order  *domain.Order
	list   []*domain.Order
	err    error

	gotFilter    repository.OrderFilter
	appended     []domain.OrderItem
	replaced     []domain.OrderItem
	confirmedID  int64
	setStatusTo  domain.OrderStatus
	deletedID    int64
	basketCreats int
}

func (m *mockOrderRepo) GetOrCreateBasket(context.Context, int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.basketCreats++
	if m.err != nil {
		return nil, m.err
	}
	return m.basket, nil
}

func (m *mockOrderRepo) GetOrder(context.Context, int64) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	return m.order, nil
}

func (m *mockOrderRepo) ListOrders(_ context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	m.gotFilter = filter
	return m.list, m.err
}

func (m *mockOrderRepo) AppendItems(_ context.Context, _ int64, items []domain.OrderItem) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.appended = items
	return m.basket, nil
}

func (m *mockOrderRepo) ReplaceItems(_ context.Context, _ int64, items []domain.OrderItem) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.replaced = items
	return m.order, nil
}

func (m *mockOrderRepo) UpdateItemQuantity(_ context.Context, _, _ int64, _ int) (*domain.Order, error) {
	return m.basket, m.err
}

func (m *mockOrderRepo) RemoveItem(_ context.Context, _, _ int64) (*domain.Order, error) {
	return m.basket, m.err
}

func (m *mockOrderRepo) DeleteOrder(_ context.Context, id int64) error {
	m.deletedID = id
	return m.err
}

func (m *mockOrderRepo) ConfirmOrder(_ context.Context, id int64) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.confirmedID = id
	confirmed := *m.basket
	confirmed.Status = domain.OrderStatusNew
	return &confirmed, nil
}

func (m *mockOrderRepo) SetOrderStatus(_ context.Context, _ int64, next domain.OrderStatus) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.setStatusTo = next
	updated := *m.order
	updated.Status = next
	return &updated, nil
}

type mockCache struct {
	mu      sync.Mutex
	basket  *domain.Order
	err     error
	deletes int
}

func (m *mockCache) Get(context.Context, int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.basket == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.basket, nil
}

func (m *mockCache) Set(_ context.Context, _ int64, basket *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.basket = basket
	return nil
}

func (m *mockCache) Delete(context.Context, int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.basket = nil
	m.deletes++
	return nil
}

var (
	testOwner = &domain.User{ID: 1, Email: "owner@example.com"}
	testStaff = &domain.User{ID: 2, Email: "staff@example.com", IsStaff: true}
)

func newService(repo *mockOrderRepo, c *mockCache) *OrderService {
	return NewOrderService(repo, c, zap.NewNop())
}

func testBasket() *domain.Order {
	return &domain.Order{ID: 10, OwnerID: 1, Status: domain.OrderStatusBasket}
}

func TestBasket_CacheMissFallsThroughToRepo(t *testing.T) {
	repo := &mockOrderRepo{basket: testBasket()}
	c := &mockCache{}
	svc := newService(repo, c)

	basket, err := svc.Basket(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(10), basket.ID)
	assert.Equal(t, 1, repo.basketCreats)
}

func TestBasket_CacheHitSkipsRepo(t *testing.T) {
	repo := &mockOrderRepo{}
	c := &mockCache{basket: testBasket()}
	svc := newService(repo, c)

	basket, err := svc.Basket(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(10), basket.ID)
	assert.Equal(t, 0, repo.basketCreats)
}

func TestAddBasketItem_InvalidQuantity(t *testing.T) {
	svc := newService(&mockOrderRepo{basket: testBasket()}, &mockCache{})

	_, err := svc.AddBasketItem(context.Background(), testOwner, ItemInput{ProductInfoID: 1, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AddBasketItem(context.Background(), testOwner, ItemInput{ProductInfoID: 1, Quantity: -2})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestAddBasketItem_InvalidatesCache(t *testing.T) {
	repo := &mockOrderRepo{basket: testBasket()}
	c := &mockCache{basket: testBasket()}
	svc := newService(repo, c)

	_, err := svc.AddBasketItem(context.Background(), testOwner, ItemInput{ProductInfoID: 1, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, c.deletes)
	require.Len(t, repo.appended, 1)
	assert.Equal(t, 2, repo.appended[0].Quantity)
}

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc := newService(&mockOrderRepo{basket: testBasket()}, &mockCache{})

	_, err := svc.CreateOrder(context.Background(), testOwner, nil)
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreateOrder_AppendsToBasket(t *testing.T) {
	repo := &mockOrderRepo{basket: testBasket()}
	c := &mockCache{}
	svc := newService(repo, c)

	_, err := svc.CreateOrder(context.Background(), testOwner, []ItemInput{
		{ProductInfoID: 1, Quantity: 2},
		{ProductInfoID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Len(t, repo.appended, 2)
	assert.Equal(t, 1, c.deletes)
}

func TestConfirm_DelegatesToRepo(t *testing.T) {
	repo := &mockOrderRepo{basket: testBasket()}
	c := &mockCache{basket: testBasket()}
	svc := newService(repo, c)

	order, err := svc.Confirm(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, order.Status)
	assert.Equal(t, int64(10), repo.confirmedID)
	assert.Equal(t, 1, c.deletes, "confirm must drop the cached basket")
}

func TestConfirm_EmptyBasketPassesThrough(t *testing.T) {
	repo := &mockOrderRepo{basket: testBasket(), err: domain.ErrEmptyBasket}
	svc := newService(repo, &mockCache{})

	_, err := svc.Confirm(context.Background(), testOwner)
	assert.ErrorIs(t, err, domain.ErrEmptyBasket)
}

func TestGetOrder_InvisibleIsNotFound(t *testing.T) {
	strangersOrder := &domain.Order{ID: 5, OwnerID: 99, Status: domain.OrderStatusNew}
	svc := newService(&mockOrderRepo{order: strangersOrder}, &mockCache{})

	_, err := svc.GetOrder(context.Background(), testOwner, 5)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestGetOrder_StaffCannotSeeBaskets(t *testing.T) {
	svc := newService(&mockOrderRepo{order: testBasket()}, &mockCache{})

	_, err := svc.GetOrder(context.Background(), testStaff, 10)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestListOrders_FilterByRole(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newService(repo, &mockCache{})

	_, err := svc.ListOrders(context.Background(), testOwner, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.gotFilter.OwnerID)
	assert.Equal(t, testOwner.ID, *repo.gotFilter.OwnerID)
	assert.False(t, repo.gotFilter.ExcludeBasket)

	_, err = svc.ListOrders(context.Background(), testStaff, nil)
	require.NoError(t, err)
	assert.Nil(t, repo.gotFilter.OwnerID)
	assert.True(t, repo.gotFilter.ExcludeBasket)
}

func TestListOrders_SupplierFilter(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newService(repo, &mockCache{})

	shopOwner := &domain.User{ID: 5, Email: "supplier@example.com", IsSupplier: true}
	_, err := svc.ListOrders(context.Background(), shopOwner, nil)
	require.NoError(t, err)
	require.NotNil(t, repo.gotFilter.SupplierID)
	assert.Equal(t, shopOwner.ID, *repo.gotFilter.SupplierID)
	assert.Nil(t, repo.gotFilter.OwnerID)
	assert.False(t, repo.gotFilter.ExcludeBasket)
}

func TestListOrders_BadStatus(t *testing.T) {
	svc := newService(&mockOrderRepo{}, &mockCache{})

	bogus := domain.OrderStatus("WAT")
	_, err := svc.ListOrders(context.Background(), testOwner, &bogus)
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestUpdateOrder_OwnerReplacesBasketItems(t *testing.T) {
	repo := &mockOrderRepo{order: testBasket()}
	c := &mockCache{}
	svc := newService(repo, c)

	_, err := svc.UpdateOrder(context.Background(), testOwner, 10, UpdateOrderInput{
		Items:    []ItemInput{{ProductInfoID: 3, Quantity: 4}},
		ItemsSet: true,
	})
	require.NoError(t, err)
	require.Len(t, repo.replaced, 1)
	assert.Equal(t, int64(3), repo.replaced[0].ProductInfoID)
	assert.Equal(t, 1, c.deletes)
}

func TestUpdateOrder_OwnerCannotWriteStatus(t *testing.T) {
	svc := newService(&mockOrderRepo{order: testBasket()}, &mockCache{})

	_, err := svc.UpdateOrder(context.Background(), testOwner, 10, UpdateOrderInput{
		Status: domain.OrderStatusNew,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateOrder_OwnerLosesItemEditAfterConfirm(t *testing.T) {
	placed := &domain.Order{ID: 10, OwnerID: 1, Status: domain.OrderStatusNew}
	svc := newService(&mockOrderRepo{order: placed}, &mockCache{})

	_, err := svc.UpdateOrder(context.Background(), testOwner, 10, UpdateOrderInput{
		Items:    []ItemInput{{ProductInfoID: 3, Quantity: 4}},
		ItemsSet: true,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateOrder_StaffSetsStatus(t *testing.T) {
	placed := &domain.Order{ID: 10, OwnerID: 1, Status: domain.OrderStatusNew}
	repo := &mockOrderRepo{order: placed}
	svc := newService(repo, &mockCache{})

	order, err := svc.UpdateOrder(context.Background(), testStaff, 10, UpdateOrderInput{
		Status: domain.OrderStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	assert.Equal(t, domain.OrderStatusCancelled, repo.setStatusTo)
}

func TestUpdateOrder_StaffCannotTouchItemsOrBasket(t *testing.T) {
	placed := &domain.Order{ID: 10, OwnerID: 1, Status: domain.OrderStatusNew}
	svc := newService(&mockOrderRepo{order: placed}, &mockCache{})

	_, err := svc.UpdateOrder(context.Background(), testStaff, 10, UpdateOrderInput{
		Status:   domain.OrderStatusSent,
		Items:    []ItemInput{{ProductInfoID: 3, Quantity: 4}},
		ItemsSet: true,
	})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateOrder(context.Background(), testStaff, 10, UpdateOrderInput{
		Status: domain.OrderStatusBasket,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateOrder_BadStatus(t *testing.T) {
	svc := newService(&mockOrderRepo{order: testBasket()}, &mockCache{})

	_, err := svc.UpdateOrder(context.Background(), testOwner, 10, UpdateOrderInput{
		Status: domain.OrderStatus("LOST"),
	})
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestUpdateOrder_EmptyItemList(t *testing.T) {
	svc := newService(&mockOrderRepo{order: testBasket()}, &mockCache{})

	_, err := svc.UpdateOrder(context.Background(), testOwner, 10, UpdateOrderInput{
		Items:    []ItemInput{},
		ItemsSet: true,
	})
	assert.ErrorIs(t, err, ErrEmptyItems)
}

func TestDeleteOrder_OwnerBasketOnly(t *testing.T) {
	repo := &mockOrderRepo{order: testBasket()}
	svc := newService(repo, &mockCache{})

	require.NoError(t, svc.DeleteOrder(context.Background(), testOwner, 10))
	assert.Equal(t, int64(10), repo.deletedID)

	placed := &domain.Order{ID: 11, OwnerID: 1, Status: domain.OrderStatusNew}
	svc = newService(&mockOrderRepo{order: placed}, &mockCache{})
	assert.ErrorIs(t, svc.DeleteOrder(context.Background(), testOwner, 11), ErrForbidden)
}
