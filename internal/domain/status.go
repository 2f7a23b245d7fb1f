package domain

import "fmt"

// Transition legality is a pure function over (current, requested). Services
// translate an illegal transition into their own conflict errors.

func (s HoldStatus) Terminal() bool {
	return s == HoldConfirmed || s == HoldCancelled || s == HoldExpired
}

// CanTransitionHold reports whether a hold may move from one status to
// another. Only held is non-terminal.
func CanTransitionHold(from, to HoldStatus) bool {
	if from != HoldHeld {
		return false
	}
	switch to {
	case HoldConfirmed, HoldCancelled, HoldExpired:
		return true
	}
	return false
}

func (s CartStatus) Terminal() bool {
	return s == CartCheckedOut || s == CartOrdered || s == CartExpired || s == CartCancelled
}

func (s OrderStatus) Terminal() bool {
	return s == OrderDone || s == OrderCancelled
}

// NextOrderStatus returns the single legal next step of the provider-gated
// fulfillment chain. Cancellation is handled separately.
func NextOrderStatus(s OrderStatus) (OrderStatus, bool) {
	switch s {
	case OrderCreated:
		return OrderAccepted, true
	case OrderAccepted:
		return OrderOnTheWay, true
	case OrderOnTheWay:
		return OrderInService, true
	case OrderInService:
		return OrderDone, true
	}
	return "", false
}

// CanCancelOrder reports whether the always-available cancellation edge is
// open from the given state.
func CanCancelOrder(s OrderStatus) bool {
	return !s.Terminal()
}

// DeliveryStatus is the second, integer-ranked encoding of order progress.
// Unlike the fulfillment chain it allows skipping states as long as the rank
// never decreases.
type DeliveryStatus string

const (
	DeliveryCreated   DeliveryStatus = "created"
	DeliveryInProcess DeliveryStatus = "in_process"
	DeliveryOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryDelivered DeliveryStatus = "delivered"
)

func (d DeliveryStatus) Rank() int {
	switch d {
	case DeliveryCreated:
		return 0
	case DeliveryInProcess:
		return 1
	case DeliveryOnTheWay:
		return 2
	case DeliveryDelivered:
		return 3
	}
	return -1
}

func (d DeliveryStatus) Valid() bool { return d.Rank() >= 0 }

// CanAdvanceDelivery reports whether the ranked encoding permits moving from
// one status to another (monotone, non-decreasing).
func CanAdvanceDelivery(from, to DeliveryStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.Rank() >= from.Rank()
}

// TransitionError carries enough detail to disambiguate "wrong state" from
// "not found" at the API boundary.
type TransitionError struct {
	Current   string
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %q to %q", e.Current, e.Attempted)
}
