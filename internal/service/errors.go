package service

import "errors"

var (
	ErrForbidden  = errors.New("action is not permitted")
	ErrEmptyItems = errors.New("order_items cannot be an empty list")
	ErrBadStatus  = errors.New("unknown order status")
)
