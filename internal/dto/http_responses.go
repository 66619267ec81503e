package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized = "UNAUTHORIZED"
	Forbidden    = "FORBIDDEN"
	Conflict     = "CONFLICT"
	RateLimited  = "RATE_LIMITED"

	EventNotFound        = "EVENT_NOT_FOUND"
	UserNotFound         = "USER_NOT_FOUND"
	TicketNotFound       = "TICKET_NOT_FOUND"
	OrderNotFound        = "ORDER_NOT_FOUND"
	InsufficientTickets  = "INSUFFICIENT_TICKETS"
	InvalidQuantity      = "INVALID_QUANTITY"
	InvalidCapacity      = "INVALID_CAPACITY"
	TicketAlreadyUsed    = "TICKET_ALREADY_USED"
	TicketCancelled      = "TICKET_CANCELLED"
	InvalidTicketState   = "INVALID_TICKET_STATE"
	InvalidCredentials   = "INVALID_CREDENTIALS"
	EmailAlreadyInUse    = "EMAIL_TAKEN"
	RedemptionCodeAbsent = "CODE_NOT_FOUND"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.AbortWithStatusJSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func NotFoundError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusNotFound, code, desc)
}

func UnauthorizedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, desc)
}

func ForbiddenError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusForbidden, Forbidden, desc)
}

func ConflictError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusConflict, Conflict, desc)
}

func TooManyRequestsError(c *ginext.Context) {
	ErrorResponse(c, http.StatusTooManyRequests, RateLimited, "Too many requests, slow down")
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func EventNotFoundError(c *ginext.Context) {
	NotFoundError(c, EventNotFound, "Event not found")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
