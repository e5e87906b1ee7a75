package domain

import "errors"

var (
	ErrIllegalTransition = errors.New("illegal transition of order status")
	ErrEmptyBasket       = errors.New("basket is empty, nothing to confirm")
	ErrInsufficientStock = errors.New("insufficient stock for requested quantity")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
)
