package model

import "fmt"

type TicketStatus string

const (
	TicketValid     TicketStatus = "valid"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketValid:     {TicketUsed, TicketCancelled},
	TicketUsed:      nil,
	TicketCancelled: nil,
}

func (s TicketStatus) Valid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

func (s TicketStatus) Terminal() bool {
	return s.Valid() && len(ticketTransitions[s]) == 0
}

func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, to := range ticketTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Transition validates s -> next. The returned error names why the ticket
// cannot move, so callers can surface it as-is.
func (s TicketStatus) Transition(next TicketStatus) (TicketStatus, error) {
	if s.CanTransitionTo(next) {
		return next, nil
	}
	switch s {
	case TicketUsed:
		return s, ErrTicketAlreadyUsed
	case TicketCancelled:
		return s, ErrTicketCancelled
	}
	return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}
