// Package policy decides which actor may do what to an order in which state.
// Rules are small predicates evaluated in order; the first grant or deny wins
// and an exhausted rule set denies.
package policy

import (
	"github.com/smertin-nikita/market/internal/domain"
)

type Action string

const (
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Request describes a mutation attempt against an order.
type Request struct {
	Action Action
	// NextStatus is set when the request wants a status change.
	NextStatus domain.OrderStatus
	// HasItems is set when the request carries line-item edits.
	HasItems bool
}

type Decision int

const (
	Skip Decision = iota // rule does not apply, try the next one
	Grant
	Deny
)

type Rule struct {
	Name  string
	Check func(actor *domain.User, order *domain.Order, req Request) Decision
}

type Set []Rule

// Allow evaluates the rules in order and returns the name of the denying rule
// on refusal.
func (s Set) Allow(actor *domain.User, order *domain.Order, req Request) (bool, string) {
	for _, rule := range s {
		switch rule.Check(actor, order, req) {
		case Grant:
			return true, ""
		case Deny:
			return false, rule.Name
		}
	}
	return false, "default-deny"
}

// OwnerBasketOnly lets the owner edit line items of their own basket. Status
// writes are refused here: the owner advances status only through confirm.
func OwnerBasketOnly() Rule {
	return Rule{
		Name: "owner-basket-only",
		Check: func(actor *domain.User, order *domain.Order, req Request) Decision {
			if actor.ID != order.OwnerID || !order.IsBasket() {
				return Skip
			}
			if req.NextStatus != "" {
				return Deny
			}
			return Grant
		},
	}
}

// StaffStatusOnly lets staff change status on placed orders. Staff never touch
// line items and never point an order back at BASKET.
func StaffStatusOnly() Rule {
	return Rule{
		Name: "staff-status-only",
		Check: func(actor *domain.User, order *domain.Order, req Request) Decision {
			if !actor.IsStaff || order.IsBasket() {
				return Skip
			}
			if req.HasItems {
				return Deny
			}
			if req.NextStatus == domain.OrderStatusBasket {
				return Deny
			}
			return Grant
		},
	}
}

// OwnerDeleteBasket restricts deletion to the owner's own basket.
func OwnerDeleteBasket() Rule {
	return Rule{
		Name: "owner-delete-basket",
		Check: func(actor *domain.User, order *domain.Order, req Request) Decision {
			if req.Action != ActionDelete {
				return Skip
			}
			if actor.ID == order.OwnerID && order.IsBasket() {
				return Grant
			}
			return Deny
		},
	}
}

// UpdateRules is the rule set applied to order updates.
func UpdateRules() Set {
	return Set{OwnerBasketOnly(), StaffStatusOnly()}
}

// DeleteRules is the rule set applied to order deletion.
func DeleteRules() Set {
	return Set{OwnerDeleteBasket()}
}

// Visible reports whether an actor may see an order at all. Owners see their
// own orders including the basket. Staff see every placed order; suppliers see
// placed orders carrying goods from a shop they own. Baskets stay private to
// their owner. Invisible orders surface as not-found, never as forbidden.
func Visible(actor *domain.User, order *domain.Order) bool {
	if actor.ID == order.OwnerID {
		return true
	}
	if order.IsBasket() {
		return false
	}
	if actor.IsStaff {
		return true
	}
	return actor.IsSupplier && order.SuppliedBy(actor.ID)
}
