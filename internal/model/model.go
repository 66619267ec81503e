package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleOrganizer Role = "organizer"
)

func (r Role) Valid() bool {
	return r == RoleAttendee || r == RoleOrganizer
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         Role      `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Ref is the copy of the user stored on tickets and orders at purchase time.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

type UserRef struct {
	ID    string `db:"user_id" json:"id"`
	Name  string `db:"user_name" json:"name"`
	Email string `db:"user_email" json:"email"`
}

type EventRef struct {
	ID       string `db:"event_id" json:"id"`
	Title    string `db:"event_title" json:"title"`
	Date     string `db:"event_date" json:"date"`
	Time     string `db:"event_time" json:"time"`
	Location string `db:"event_location" json:"location"`
}

type Event struct {
	ID               string          `db:"id" json:"id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description,omitempty"`
	Date             string          `db:"date" json:"date"`
	Time             string          `db:"time" json:"time"`
	Location         string          `db:"location" json:"location"`
	Address          string          `db:"address" json:"address,omitempty"`
	Category         string          `db:"category" json:"category,omitempty"`
	Image            string          `db:"image" json:"image,omitempty"`
	Price            decimal.Decimal `db:"price" json:"price"`
	Capacity         int             `db:"capacity" json:"capacity"`
	AvailableTickets int             `db:"available_tickets" json:"available_tickets"`
	Organizer        UserRef         `json:"organizer"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

func (e *Event) Ref() EventRef {
	return EventRef{
		ID:       e.ID,
		Title:    e.Title,
		Date:     e.Date,
		Time:     e.Time,
		Location: e.Location,
	}
}

// Sold is the number of seats currently held by tickets that are not cancelled.
func (e *Event) Sold() int {
	return e.Capacity - e.AvailableTickets
}

type Ticket struct {
	ID           string       `db:"id" json:"id"`
	OrderID      string       `db:"order_id" json:"order_id"`
	Event        EventRef     `json:"event"`
	User         UserRef      `json:"user"`
	Code         string       `db:"redemption_code" json:"code"`
	Status       TicketStatus `db:"status" json:"status"`
	PurchaseDate time.Time    `db:"purchase_date" json:"purchase_date"`
	CheckInDate  *time.Time   `db:"check_in_date" json:"check_in_date,omitempty"`
}

type Order struct {
	ID          string          `db:"id" json:"id"`
	User        UserRef         `json:"user"`
	Event       EventRef        `json:"event"`
	Quantity    int             `db:"quantity" json:"quantity"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status      OrderStatus     `db:"status" json:"status"`
	Tickets     []Ticket        `json:"tickets"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// InventoryDrift describes an event whose counter disagreed with its tickets.
type InventoryDrift struct {
	EventID   string
	Available int
	Expected  int
}
