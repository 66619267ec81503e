package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/model"
)

func (s *service) CreateEvent(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	var req dto.EventRequest
	if !s.bind(ctx, &req) {
		return
	}
	if req.Price.IsNegative() {
		dto.FieldIncorrectError(ctx, "price")
		return
	}

	now := time.Now().UTC()
	event := &model.Event{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		Date:             req.Date,
		Time:             req.Time,
		Location:         req.Location,
		Address:          req.Address,
		Category:         req.Category,
		Image:            req.Image,
		Price:            req.Price.Round(2),
		Capacity:         req.Capacity,
		AvailableTickets: req.Capacity,
		Organizer:        model.UserRef{ID: p.UserID, Name: p.Name, Email: p.Email},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateEvent(ctx.Request.Context(), event); err != nil {
		s.fail(ctx, "create event", err)
		return
	}

	s.log.Info().
		Str("event_id", event.ID).
		Str("organizer_id", p.UserID).
		Int("capacity", event.Capacity).
		Msg("event created successfully")
	dto.SuccessCreatedResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) GetEvent(ctx *ginext.Context) {
	event, err := s.repo.GetEventByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.fail(ctx, "get event", err)
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponse(event))
}

func (s *service) GetAllEvents(ctx *ginext.Context) {
	events, err := s.repo.GetAllEvents(ctx.Request.Context())
	if err != nil {
		s.fail(ctx, "list events", err)
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponses(events))
}

func (s *service) GetOrganizerEvents(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	events, err := s.repo.GetEventsByOrganizer(ctx.Request.Context(), p.UserID)
	if err != nil {
		s.fail(ctx, "list organizer events", err)
		return
	}
	dto.SuccessResponse(ctx, dto.NewEventResponses(events))
}

func (s *service) UpdateEvent(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	var req dto.EventRequest
	if !s.bind(ctx, &req) {
		return
	}
	if req.Price.IsNegative() {
		dto.FieldIncorrectError(ctx, "price")
		return
	}

	current, err := s.ownedEvent(ctx, p, ctx.Param("id"))
	if err != nil {
		s.fail(ctx, "update event", err)
		return
	}

	current.Title = req.Title
	current.Description = req.Description
	current.Date = req.Date
	current.Time = req.Time
	current.Location = req.Location
	current.Address = req.Address
	current.Category = req.Category
	current.Image = req.Image
	current.Price = req.Price.Round(2)
	current.Capacity = req.Capacity
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.UpdateEvent(ctx.Request.Context(), current)
	if err != nil {
		s.fail(ctx, "update event", err)
		return
	}
	s.log.Info().Str("event_id", updated.ID).Int("capacity", updated.Capacity).Msg("event updated")
	dto.SuccessResponse(ctx, dto.NewEventResponse(updated))
}

func (s *service) DeleteEvent(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	id := ctx.Param("id")
	if _, err := s.ownedEvent(ctx, p, id); err != nil {
		s.fail(ctx, "delete event", err)
		return
	}
	if err := s.repo.DeleteEvent(ctx.Request.Context(), id); err != nil {
		s.fail(ctx, "delete event", err)
		return
	}
	s.log.Info().Str("event_id", id).Msg("event deleted")
	dto.SuccessResponse(ctx, map[string]string{"id": id})
}

func (s *service) ownedEvent(ctx *ginext.Context, p *identity.Principal, id string) (*model.Event, error) {
	event, err := s.repo.GetEventByID(ctx.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if event.Organizer.ID != p.UserID {
		return nil, model.ErrNotOwner
	}
	return event, nil
}
