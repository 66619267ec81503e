package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"eventTickets/internal/model"
)

// Aggregate packages freshly minted tickets into a completed order. The
// tickets get the new order id; event and user are copied, not referenced.
func Aggregate(event *model.Event, user *model.User, quantity int, tickets []model.Ticket, now time.Time) *model.Order {
	o := &model.Order{
		ID:          uuid.NewString(),
		User:        user.Ref(),
		Event:       event.Ref(),
		Quantity:    quantity,
		TotalAmount: Total(event.Price, quantity),
		Status:      model.OrderCompleted,
		Tickets:     make([]model.Ticket, len(tickets)),
		CreatedAt:   now,
	}
	for i, tk := range tickets {
		tk.OrderID = o.ID
		o.Tickets[i] = tk
	}
	return o
}

// Total is price times quantity rounded to cents.
func Total(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Validate checks the invariants a completed order must hold before it is
// persisted.
func Validate(o *model.Order) error {
	if o.Quantity < 1 {
		return model.ErrInvalidQuantity
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: order status %q", model.ErrInvalidInput, o.Status)
	}
	if o.Status == model.OrderCompleted && len(o.Tickets) != o.Quantity {
		return fmt.Errorf("%w: order has %d tickets for quantity %d", model.ErrInvalidInput, len(o.Tickets), o.Quantity)
	}
	seen := make(map[string]struct{}, len(o.Tickets))
	for _, tk := range o.Tickets {
		if tk.OrderID != o.ID {
			return fmt.Errorf("%w: ticket %s belongs to order %s", model.ErrInvalidInput, tk.ID, tk.OrderID)
		}
		if _, dup := seen[tk.Code]; dup {
			return model.ErrDuplicateCode
		}
		seen[tk.Code] = struct{}{}
	}
	return nil
}
