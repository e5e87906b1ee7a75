package policy

import (
	"testing"

	"github.com/smertin-nikita/market/internal/domain"
	"github.com/stretchr/testify/assert"
)

var (
	owner    = &domain.User{ID: 1, Email: "owner@example.com"}
	staff    = &domain.User{ID: 2, Email: "staff@example.com", IsStaff: true}
	other    = &domain.User{ID: 3, Email: "other@example.com"}
	supplier = &domain.User{ID: 4, Email: "supplier@example.com", IsSupplier: true}
)

func basketOf(u *domain.User) *domain.Order {
	return &domain.Order{ID: 10, OwnerID: u.ID, Status: domain.OrderStatusBasket}
}

func placedOf(u *domain.User, status domain.OrderStatus) *domain.Order {
	return &domain.Order{ID: 11, OwnerID: u.ID, Status: status}
}

func TestUpdateRules(t *testing.T) {
	tests := []struct {
		name    string
		actor   *domain.User
		order   *domain.Order
		req     Request
		allowed bool
	}{
		{
			name:    "owner edits items of own basket",
			actor:   owner,
			order:   basketOf(owner),
			req:     Request{Action: ActionUpdate, HasItems: true},
			allowed: true,
		},
		{
			name:    "owner cannot write status on own basket",
			actor:   owner,
			order:   basketOf(owner),
			req:     Request{Action: ActionUpdate, NextStatus: domain.OrderStatusNew},
			allowed: false,
		},
		{
			name:    "owner cannot edit items after confirmation",
			actor:   owner,
			order:   placedOf(owner, domain.OrderStatusNew),
			req:     Request{Action: ActionUpdate, HasItems: true},
			allowed: false,
		},
		{
			name:    "stranger cannot edit someone else's basket",
			actor:   other,
			order:   basketOf(owner),
			req:     Request{Action: ActionUpdate, HasItems: true},
			allowed: false,
		},
		{
			name:    "staff sets status on placed order",
			actor:   staff,
			order:   placedOf(owner, domain.OrderStatusNew),
			req:     Request{Action: ActionUpdate, NextStatus: domain.OrderStatusCancelled},
			allowed: true,
		},
		{
			name:    "staff cannot set status back to basket",
			actor:   staff,
			order:   placedOf(owner, domain.OrderStatusNew),
			req:     Request{Action: ActionUpdate, NextStatus: domain.OrderStatusBasket},
			allowed: false,
		},
		{
			name:    "staff never edits line items",
			actor:   staff,
			order:   placedOf(owner, domain.OrderStatusNew),
			req:     Request{Action: ActionUpdate, NextStatus: domain.OrderStatusSent, HasItems: true},
			allowed: false,
		},
		{
			name:    "staff cannot touch a basket",
			actor:   staff,
			order:   basketOf(owner),
			req:     Request{Action: ActionUpdate, NextStatus: domain.OrderStatusNew},
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, _ := UpdateRules().Allow(tt.actor, tt.order, tt.req)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestDeleteRules(t *testing.T) {
	allowed, _ := DeleteRules().Allow(owner, basketOf(owner), Request{Action: ActionDelete})
	assert.True(t, allowed)

	allowed, rule := DeleteRules().Allow(owner, placedOf(owner, domain.OrderStatusNew), Request{Action: ActionDelete})
	assert.False(t, allowed)
	assert.Equal(t, "owner-delete-basket", rule)

	allowed, _ = DeleteRules().Allow(staff, basketOf(owner), Request{Action: ActionDelete})
	assert.False(t, allowed)
}

func TestVisible(t *testing.T) {
	assert.True(t, Visible(owner, basketOf(owner)))
	assert.True(t, Visible(owner, placedOf(owner, domain.OrderStatusSent)))
	assert.False(t, Visible(other, placedOf(owner, domain.OrderStatusSent)))
	assert.True(t, Visible(staff, placedOf(owner, domain.OrderStatusNew)))
	assert.False(t, Visible(staff, basketOf(owner)), "baskets are private")
	assert.True(t, Visible(staff, basketOf(staff)))
}

func suppliedOrder(status domain.OrderStatus, shopOwner int64) *domain.Order {
	return &domain.Order{
		ID:      12,
		OwnerID: owner.ID,
		Status:  status,
		Items: []domain.OrderItem{
			{
				ProductInfoID: 1,
				Quantity:      1,
				ProductInfo:   &domain.ProductInfo{ID: 1, Shop: &domain.Shop{ID: 1, OwnerID: shopOwner}},
			},
		},
	}
}

func TestVisible_Supplier(t *testing.T) {
	assert.True(t, Visible(supplier, suppliedOrder(domain.OrderStatusNew, supplier.ID)))
	assert.False(t, Visible(supplier, suppliedOrder(domain.OrderStatusBasket, supplier.ID)), "baskets are private even to the supplier")
	assert.False(t, Visible(supplier, suppliedOrder(domain.OrderStatusNew, 99)), "someone else's shop")
	assert.True(t, Visible(supplier, basketOf(supplier)))
}
