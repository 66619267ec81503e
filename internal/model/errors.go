package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

var (
	ErrEventNotFound  = fmt.Errorf("event %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)
	ErrTicketNotFound = fmt.Errorf("ticket %w", ErrNotFound)
	ErrOrderNotFound  = fmt.Errorf("order %w", ErrNotFound)
	ErrCodeNotFound   = fmt.Errorf("redemption code %w", ErrNotFound)

	ErrInsufficientCapacity = fmt.Errorf("%w: not enough tickets available", ErrCapacityExceeded)

	ErrTicketAlreadyUsed = fmt.Errorf("%w: ticket already used", ErrInvalidTransition)
	ErrTicketCancelled   = fmt.Errorf("%w: ticket cancelled", ErrInvalidTransition)

	ErrInvalidQuantity = fmt.Errorf("%w: quantity", ErrInvalidInput)
	ErrInvalidCapacity = fmt.Errorf("%w: capacity below tickets already sold", ErrInvalidInput)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrNotOwner           = fmt.Errorf("%w: not the owner", ErrForbidden)
	ErrOrganizerOnly      = fmt.Errorf("%w: organizers only", ErrForbidden)

	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDuplicateCode = fmt.Errorf("%w: duplicate redemption code", ErrConflict)
)
