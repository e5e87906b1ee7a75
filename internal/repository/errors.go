package repository

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrItemNotFound        = errors.New("order item not found")
	ErrProductInfoNotFound = errors.New("product info not found")
	ErrDuplicateItem       = errors.New("order already has an item for this product info")
	ErrTokenNotFound       = errors.New("auth token not found")
	ErrOrderNotBasket      = errors.New("order is not a basket")
)
