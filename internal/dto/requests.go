package dto

import (
	"github.com/shopspring/decimal"
)

type RegisterUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type EventRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Date        string          `json:"date" validate:"required,date"`
	Time        string          `json:"time" validate:"clock"`
	Location    string          `json:"location" validate:"required,max=200"`
	Address     string          `json:"address" validate:"max=300"`
	Category    string          `json:"category" validate:"max=50"`
	Image       string          `json:"image" validate:"max=500"`
	Price       decimal.Decimal `json:"price"`
	Capacity    int             `json:"capacity" validate:"gt=0"`
}

// RegisterTicketsRequest is the body of POST /events/:id/register. A missing
// quantity means one ticket.
type RegisterTicketsRequest struct {
	Quantity *int `json:"quantity"`
}

func (r RegisterTicketsRequest) QuantityOrDefault() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type ScanRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}
