package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"eventTickets/internal/model"
)

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type EventResponse struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Date             string        `json:"date"`
	Time             string        `json:"time,omitempty"`
	Location         string        `json:"location"`
	Address          string        `json:"address,omitempty"`
	Category         string        `json:"category,omitempty"`
	Image            string        `json:"image,omitempty"`
	Price            json.Number   `json:"price"`
	Capacity         int           `json:"capacity"`
	AvailableTickets int           `json:"available_tickets"`
	Organizer        model.UserRef `json:"organizer"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type TicketResponse struct {
	ID           string             `json:"id"`
	OrderID      string             `json:"order_id"`
	Event        model.EventRef     `json:"event"`
	User         model.UserRef      `json:"user"`
	Code         string             `json:"code"`
	Status       model.TicketStatus `json:"status"`
	PurchaseDate time.Time          `json:"purchase_date"`
	CheckInDate  *time.Time         `json:"check_in_date,omitempty"`
}

type OrderResponse struct {
	ID          string            `json:"id"`
	User        model.UserRef     `json:"user"`
	Event       model.EventRef    `json:"event"`
	Quantity    int               `json:"quantity"`
	TotalAmount json.Number       `json:"total_amount"`
	Status      model.OrderStatus `json:"status"`
	Tickets     []TicketResponse  `json:"tickets"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ScanResponse is the gate-facing answer to POST /tickets/scan. It is sent
// without the usual envelope so scanners only look at success.
type ScanResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Ticket  *TicketResponse `json:"ticket,omitempty"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func NewEventResponse(e *model.Event) EventResponse {
	return EventResponse{
		ID:               e.ID,
		Title:            e.Title,
		Description:      e.Description,
		Date:             e.Date,
		Time:             e.Time,
		Location:         e.Location,
		Address:          e.Address,
		Category:         e.Category,
		Image:            e.Image,
		Price:            money(e.Price),
		Capacity:         e.Capacity,
		AvailableTickets: e.AvailableTickets,
		Organizer:        e.Organizer,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func NewEventResponses(events []model.Event) []EventResponse {
	resp := make([]EventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, NewEventResponse(&events[i]))
	}
	return resp
}

func NewTicketResponse(tk *model.Ticket) TicketResponse {
	return TicketResponse{
		ID:           tk.ID,
		OrderID:      tk.OrderID,
		Event:        tk.Event,
		User:         tk.User,
		Code:         tk.Code,
		Status:       tk.Status,
		PurchaseDate: tk.PurchaseDate,
		CheckInDate:  tk.CheckInDate,
	}
}

func NewTicketResponses(tickets []model.Ticket) []TicketResponse {
	resp := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		resp = append(resp, NewTicketResponse(&tickets[i]))
	}
	return resp
}

func NewOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:          o.ID,
		User:        o.User,
		Event:       o.Event,
		Quantity:    o.Quantity,
		TotalAmount: money(o.TotalAmount),
		Status:      o.Status,
		Tickets:     NewTicketResponses(o.Tickets),
		CreatedAt:   o.CreatedAt,
	}
}

func NewOrderResponses(orders []model.Order) []OrderResponse {
	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, NewOrderResponse(&orders[i]))
	}
	return resp
}
