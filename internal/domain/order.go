package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	Status    OrderStatus     `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []OrderItem     `json:"order_items"`
}

// OrderItem binds one inventory record and a requested quantity to an order.
// Price is the unit price snapshotted when the item was added, refreshed at
// confirm time, so Amount can always be recomputed from the items alone.
type OrderItem struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"-"`
	ProductInfoID int64           `json:"product_info_id"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	ProductInfo   *ProductInfo    `json:"product_info,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeAmount returns the sum of subtotals over the order's line items.
func (o *Order) ComputeAmount() decimal.Decimal {
	amount := decimal.Zero
	for _, item := range o.Items {
		amount = amount.Add(item.Subtotal())
	}
	return amount
}

func (o *Order) IsBasket() bool {
	return o.Status == OrderStatusBasket
}

// SuppliedBy reports whether any line item references an inventory record
// from a shop owned by the given user.
func (o *Order) SuppliedBy(userID int64) bool {
	for _, item := range o.Items {
		if item.ProductInfo != nil && item.ProductInfo.Shop != nil && item.ProductInfo.Shop.OwnerID == userID {
			return true
		}
	}
	return false
}
