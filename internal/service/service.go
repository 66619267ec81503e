package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/issuer"
	"eventTickets/internal/model"
	"eventTickets/internal/rabbit"
	"eventTickets/internal/redemption"
	"eventTickets/internal/repo"
	"eventTickets/pkg/validator"
)

type Service interface {
	RegisterUser(ctx *ginext.Context)
	Login(ctx *ginext.Context)
	Verify(ctx *ginext.Context)

	CreateEvent(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	GetAllEvents(ctx *ginext.Context)
	GetOrganizerEvents(ctx *ginext.Context)
	UpdateEvent(ctx *ginext.Context)
	DeleteEvent(ctx *ginext.Context)

	Register(ctx *ginext.Context)
	Scan(ctx *ginext.Context)
	GetTickets(ctx *ginext.Context)
	CancelTicket(ctx *ginext.Context)
	GetOrders(ctx *ginext.Context)
	GetOrder(ctx *ginext.Context)

	Health(ctx *ginext.Context)
}

type service struct {
	repo    repo.Repository
	log     *zerolog.Logger
	rbt     rabbit.Publisher
	auth    *identity.Provider
	issuer  *issuer.Issuer
	scanner *redemption.Scanner
}

func NewService(
	repo repo.Repository,
	logger *zerolog.Logger,
	rbt rabbit.Publisher,
	auth *identity.Provider,
	is *issuer.Issuer,
	scanner *redemption.Scanner,
) Service {
	if rbt == nil {
		rbt = rabbit.Nop{}
	}
	return &service{
		repo:    repo,
		log:     logger,
		rbt:     rbt,
		auth:    auth,
		issuer:  is,
		scanner: scanner,
	}
}

// bind decodes and validates the JSON body, answering 400 itself on failure.
func (s *service) bind(ctx *ginext.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		s.log.Debug().Err(err).Str("path", ctx.FullPath()).Msg("failed to parse request body")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(ctx.Request.Context(), req); verr != nil {
		var fields validator.Errors
		if errors.As(verr, &fields) && fields[0].BadFormat() {
			dto.BadResponseError(ctx, dto.FieldBadFormat, verr.Error())
			return false
		}
		dto.BadResponseError(ctx, dto.FieldIncorrect, verr.Error())
		return false
	}
	return true
}

func (s *service) principal(ctx *ginext.Context) (*identity.Principal, bool) {
	p, ok := identity.FromContext(ctx)
	if !ok {
		dto.UnauthorizedError(ctx, "Missing bearer token")
	}
	return p, ok
}

// fail answers with the status that matches err. Anything unrecognised is
// logged and reported as a generic 500.
func (s *service) fail(ctx *ginext.Context, op string, err error) {
	switch {
	case errors.Is(err, model.ErrEventNotFound):
		dto.EventNotFoundError(ctx)
	case errors.Is(err, model.ErrUserNotFound):
		dto.NotFoundError(ctx, dto.UserNotFound, "User not found")
	case errors.Is(err, model.ErrTicketNotFound):
		dto.NotFoundError(ctx, dto.TicketNotFound, "Ticket not found")
	case errors.Is(err, model.ErrOrderNotFound):
		dto.NotFoundError(ctx, dto.OrderNotFound, "Order not found")
	case errors.Is(err, model.ErrCodeNotFound):
		dto.NotFoundError(ctx, dto.RedemptionCodeAbsent, "Invalid ticket code")
	case errors.Is(err, model.ErrInsufficientCapacity):
		dto.BadResponseError(ctx, dto.InsufficientTickets, "Not enough tickets available")
	case errors.Is(err, model.ErrInvalidQuantity):
		dto.BadResponseError(ctx, dto.InvalidQuantity, "Quantity is out of range")
	case errors.Is(err, model.ErrInvalidCapacity):
		dto.BadResponseError(ctx, dto.InvalidCapacity, "Capacity cannot go below tickets already sold")
	case errors.Is(err, model.ErrTicketAlreadyUsed):
		dto.BadResponseError(ctx, dto.TicketAlreadyUsed, "Ticket already used")
	case errors.Is(err, model.ErrTicketCancelled):
		dto.BadResponseError(ctx, dto.TicketCancelled, "Ticket cancelled")
	case errors.Is(err, model.ErrInvalidTransition):
		dto.BadResponseError(ctx, dto.InvalidTicketState, "Ticket cannot change to that status")
	case errors.Is(err, model.ErrInvalidCredentials):
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.InvalidCredentials, "Invalid email or password")
	case errors.Is(err, model.ErrUnauthorized):
		dto.UnauthorizedError(ctx, "Authentication required")
	case errors.Is(err, model.ErrForbidden):
		dto.ForbiddenError(ctx, "Not allowed")
	case errors.Is(err, model.ErrEmailTaken):
		dto.ErrorResponse(ctx, http.StatusConflict, dto.EmailAlreadyInUse, "Email already registered")
	case errors.Is(err, model.ErrConflict):
		dto.ConflictError(ctx, "Concurrent update, please retry")
	case errors.Is(err, model.ErrInvalidInput):
		dto.BadResponseError(ctx, dto.FieldIncorrect, err.Error())
	default:
		s.log.Error().Err(err).Str("op", op).Msg("request failed")
		dto.InternalServerError(ctx)
	}
}

// notify publishes after the state change is committed. A bus failure never
// fails the request.
func (s *service) notify(ctx context.Context, n dto.TicketNotification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.log.Error().Err(err).Str("kind", n.Kind).Msg("failed to marshal notification")
		return
	}
	if err := s.rbt.Publish(context.WithoutCancel(ctx), n.Kind, payload); err != nil {
		s.log.Warn().Err(err).Str("kind", n.Kind).Msg("failed to publish notification")
	}
}

func (s *service) Health(ctx *ginext.Context) {
	if err := s.repo.Ping(ctx.Request.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		dto.ErrorResponse(ctx, http.StatusServiceUnavailable, dto.ServiceUnavailable, "Storage unavailable")
		return
	}
	dto.SuccessResponse(ctx, map[string]string{"storage": "up"})
}
