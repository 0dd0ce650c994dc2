package order

import (
	"errors"
	"fmt"
	"sort"

	"marketplace/internal/model"
)

// ErrInvalidTransition the target state is not reachable from the current one
var ErrInvalidTransition = errors.New("order: invalid state transition")

var transitions = map[model.OrderState][]model.OrderState{
	model.OrderStateCreated:         {model.OrderStatePaymentPending, model.OrderStateCancelled},
	model.OrderStatePaymentPending:  {model.OrderStatePaid, model.OrderStateCancelled},
	model.OrderStatePaid:            {model.OrderStateProcessing},
	model.OrderStateProcessing:      {model.OrderStateShipped},
	model.OrderStateShipped:         {model.OrderStateDelivered},
	model.OrderStateDelivered:       {model.OrderStateCompleted, model.OrderStateReturnRequested},
	model.OrderStateReturnRequested: {model.OrderStateReturned, model.OrderStateCompleted},
	model.OrderStateReturned:        {model.OrderStateRefunded},
	model.OrderStateCompleted:       {},
	model.OrderStateCancelled:       {},
	model.OrderStateRefunded:        {},
}

// ValidateTransition checks that next is reachable from current in one step
func ValidateTransition(current, next model.OrderState) error {
	for _, s := range transitions[current] {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
}

// AllowedTransitions returns the states reachable from s, sorted
func AllowedTransitions(s model.OrderState) []model.OrderState {
	out := append([]model.OrderState{}, transitions[s]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CanCancel reports whether the buyer may still cancel
func CanCancel(s model.OrderState) bool {
	return s == model.OrderStateCreated || s == model.OrderStatePaymentPending
}

// CanReturn reports whether a return may be requested
func CanReturn(s model.OrderState) bool {
	return s == model.OrderStateDelivered
}

// IsTerminal reports whether no transition leaves s
func IsTerminal(s model.OrderState) bool {
	switch s {
	case model.OrderStateCompleted, model.OrderStateCancelled, model.OrderStateRefunded:
		return true
	}
	return false
}

// RequiresPayment reports whether the order is still unpaid
func RequiresPayment(s model.OrderState) bool {
	return s == model.OrderStateCreated || s == model.OrderStatePaymentPending
}

// RequiresSellerAction reports whether the seller must act next
func RequiresSellerAction(s model.OrderState) bool {
	switch s {
	case model.OrderStatePaid, model.OrderStateProcessing, model.OrderStateReturnRequested:
		return true
	}
	return false
}
