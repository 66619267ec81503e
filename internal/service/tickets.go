package service

import (
	"errors"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/issuer"
	"eventTickets/internal/model"
	"eventTickets/internal/redemption"
	"eventTickets/pkg/validator"
)

// Register issues tickets for the caller: POST /events/:id/register.
func (s *service) Register(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	var req dto.RegisterTicketsRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
			return
		}
	}

	order, err := s.issuer.Issue(ctx.Request.Context(), issuer.Request{
		EventID:  ctx.Param("id"),
		UserID:   p.UserID,
		Quantity: req.QuantityOrDefault(),
	})
	if err != nil {
		s.fail(ctx, "register for event", err)
		return
	}

	codes := make([]string, 0, len(order.Tickets))
	for _, tk := range order.Tickets {
		codes = append(codes, tk.Code)
	}
	s.notify(ctx.Request.Context(), dto.TicketNotification{
		Kind:       dto.KeyOrderCompleted,
		Email:      order.User.Email,
		Name:       order.User.Name,
		EventID:    order.Event.ID,
		EventTitle: order.Event.Title,
		EventDate:  order.Event.Date,
		OrderID:    order.ID,
		Quantity:   order.Quantity,
		Total:      order.TotalAmount.StringFixed(2),
		Codes:      codes,
		At:         order.CreatedAt,
	})

	dto.SuccessCreatedResponse(ctx, dto.NewOrderResponse(order))
}

// Scan redeems a ticket at the gate. The body is a bare
// {success, message, ticket} object.
func (s *service) Scan(ctx *ginext.Context) {
	var req dto.ScanRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ScanResponse{Message: "Invalid JSON format"})
		return
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		ctx.JSON(http.StatusBadRequest, dto.ScanResponse{Message: verr.Error()})
		return
	}

	tk, err := s.scanner.Redeem(ctx.Request.Context(), req.Code)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrCodeNotFound):
		ctx.JSON(http.StatusNotFound, dto.ScanResponse{Message: "Invalid ticket code"})
		return
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		ctx.JSON(http.StatusBadRequest, dto.ScanResponse{Message: "Ticket already used"})
		return
	case errors.Is(err, model.ErrTicketCancelled):
		ctx.JSON(http.StatusBadRequest, dto.ScanResponse{Message: "Ticket cancelled"})
		return
	case errors.Is(err, model.ErrConflict):
		ctx.JSON(http.StatusConflict, dto.ScanResponse{Message: "Ticket is being processed, scan again"})
		return
	default:
		s.log.Error().Err(err).Str("op", "scan").Msg("request failed")
		ctx.JSON(http.StatusInternalServerError, dto.ScanResponse{Message: dto.InternalError})
		return
	}

	at := tk.PurchaseDate
	if tk.CheckInDate != nil {
		at = *tk.CheckInDate
	}
	s.notify(ctx.Request.Context(), dto.TicketNotification{
		Kind:       dto.KeyTicketRedeemed,
		Email:      tk.User.Email,
		Name:       tk.User.Name,
		EventID:    tk.Event.ID,
		EventTitle: tk.Event.Title,
		EventDate:  tk.Event.Date,
		TicketID:   tk.ID,
		At:         at,
	})

	resp := dto.NewTicketResponse(tk)
	ctx.JSON(http.StatusOK, dto.ScanResponse{
		Success: true,
		Message: "Ticket scanned successfully",
		Ticket:  &resp,
	})
}

func (s *service) GetTickets(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	tickets, err := s.repo.ListTicketsByUser(ctx.Request.Context(), p.UserID)
	if err != nil {
		s.fail(ctx, "list tickets", err)
		return
	}
	dto.SuccessResponse(ctx, dto.NewTicketResponses(tickets))
}

func (s *service) CancelTicket(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}

	tk, err := s.scanner.Cancel(ctx.Request.Context(), ctx.Param("id"), redemption.Principal{
		UserID: p.UserID,
		Role:   p.Role,
	})
	if err != nil {
		s.fail(ctx, "cancel ticket", err)
		return
	}

	s.notify(ctx.Request.Context(), dto.TicketNotification{
		Kind:       dto.KeyTicketCancelled,
		Email:      tk.User.Email,
		Name:       tk.User.Name,
		EventID:    tk.Event.ID,
		EventTitle: tk.Event.Title,
		EventDate:  tk.Event.Date,
		TicketID:   tk.ID,
	})
	dto.SuccessResponse(ctx, dto.NewTicketResponse(tk))
}

func (s *service) GetOrders(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	orders, err := s.repo.ListOrdersByUser(ctx.Request.Context(), p.UserID)
	if err != nil {
		s.fail(ctx, "list orders", err)
		return
	}
	dto.SuccessResponse(ctx, dto.NewOrderResponses(orders))
}

// GetOrder answers 404 for orders of other users so ids cannot be enumerated.
func (s *service) GetOrder(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	order, err := s.repo.GetOrderByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.fail(ctx, "get order", err)
		return
	}
	if order.User.ID != p.UserID {
		s.fail(ctx, "get order", model.ErrOrderNotFound)
		return
	}
	dto.SuccessResponse(ctx, dto.NewOrderResponse(order))
}
