package service

import (
	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/model"
)

func (s *service) RegisterUser(ctx *ginext.Context) {
	var req dto.RegisterUserRequest
	if !s.bind(ctx, &req) {
		return
	}
	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleAttendee
	}

	user, token, err := s.auth.Register(ctx.Request.Context(), identity.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     role,
	})
	if err != nil {
		s.fail(ctx, "register user", err)
		return
	}
	dto.SuccessCreatedResponse(ctx, dto.AuthResponse{Token: token, User: user})
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if !s.bind(ctx, &req) {
		return
	}

	user, token, err := s.auth.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(ctx, "login", err)
		return
	}
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	dto.SuccessResponse(ctx, dto.AuthResponse{Token: token, User: user})
}

// Verify returns the stored user behind the bearer token.
func (s *service) Verify(ctx *ginext.Context) {
	p, ok := s.principal(ctx)
	if !ok {
		return
	}
	user, err := s.repo.GetUserByID(ctx.Request.Context(), p.UserID)
	if err != nil {
		s.fail(ctx, "verify", err)
		return
	}
	dto.SuccessResponse(ctx, user)
}
