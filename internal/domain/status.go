package domain

type OrderStatus string

const (
	OrderStatusBasket    OrderStatus = "BASKET"
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusAssembled OrderStatus = "ASSEMBLED"
	OrderStatusSent      OrderStatus = "SENT"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusBasket, OrderStatusNew, OrderStatusConfirmed,
		OrderStatusAssembled, OrderStatusSent, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// TransitionEffect is the inventory side effect attached to a status transition.
type TransitionEffect int

const (
	EffectNone TransitionEffect = iota
	// EffectDebitStock: verify and decrement stock for every line item,
	// all-or-nothing, then recompute the order amount.
	EffectDebitStock
	// EffectCreditStock: add every line item's quantity back to its
	// inventory record.
	EffectCreditStock
)

// transitions is the single source of truth for legal status moves.
// A basket moves only to NEW (the confirm operation). Placed orders may be
// re-pointed between the fulfilment states by staff. Terminal states accept
// nothing, which also guards cancellation against double-crediting stock.
var transitions = map[OrderStatus]map[OrderStatus]TransitionEffect{
	OrderStatusBasket: {
		OrderStatusNew: EffectDebitStock,
	},
	OrderStatusNew: {
		OrderStatusConfirmed: EffectNone,
		OrderStatusAssembled: EffectNone,
		OrderStatusSent:      EffectNone,
		OrderStatusDelivered: EffectNone,
		OrderStatusCancelled: EffectCreditStock,
	},
	OrderStatusConfirmed: {
		OrderStatusNew:       EffectNone,
		OrderStatusAssembled: EffectNone,
		OrderStatusSent:      EffectNone,
		OrderStatusDelivered: EffectNone,
		OrderStatusCancelled: EffectCreditStock,
	},
	OrderStatusAssembled: {
		OrderStatusNew:       EffectNone,
		OrderStatusConfirmed: EffectNone,
		OrderStatusSent:      EffectNone,
		OrderStatusDelivered: EffectNone,
		OrderStatusCancelled: EffectCreditStock,
	},
	OrderStatusSent: {
		OrderStatusNew:       EffectNone,
		OrderStatusConfirmed: EffectNone,
		OrderStatusAssembled: EffectNone,
		OrderStatusDelivered: EffectNone,
		OrderStatusCancelled: EffectCreditStock,
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// CanTransitionTo reports whether moving from one status to another is legal.
func CanTransitionTo(from, to OrderStatus) bool {
	_, ok := transitions[from][to]
	return ok
}

// Effect returns the inventory side effect of a transition, or
// ErrIllegalTransition when the move is not in the table.
func Effect(from, to OrderStatus) (TransitionEffect, error) {
	effect, ok := transitions[from][to]
	if !ok {
		return EffectNone, ErrIllegalTransition
	}
	return effect, nil
}
