package dto

import "time"

// Routing keys of the notification messages published after a commit.
const (
	KeyOrderCompleted  = "ticket.order.completed"
	KeyTicketRedeemed  = "ticket.redeemed"
	KeyTicketCancelled = "ticket.cancelled"
)

type TicketNotification struct {
	Kind       string    `json:"kind"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	EventID    string    `json:"event_id"`
	EventTitle string    `json:"event_title"`
	EventDate  string    `json:"event_date"`
	OrderID    string    `json:"order_id,omitempty"`
	TicketID   string    `json:"ticket_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Total      string    `json:"total,omitempty"`
	Codes      []string  `json:"codes,omitempty"`
	At         time.Time `json:"at"`
}
