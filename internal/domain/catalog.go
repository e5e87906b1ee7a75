package domain

import "github.com/shopspring/decimal"

type Shop struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
}

type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductInfo is a shop's stocked, priced instance of a product.
// Quantity never goes below zero at rest: it is decremented only by a
// successful order confirmation and incremented only by cancellation of a
// previously confirmed order.
type ProductInfo struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	ShopID    int64           `json:"shop_id"`
	CodeID    int64           `json:"code_id"`
	Model     string          `json:"model"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	PriceRRC  decimal.Decimal `json:"price_rrc"`
	Product   *Product        `json:"product,omitempty"`
	Shop      *Shop           `json:"shop,omitempty"`
}
