package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
	"eventTickets/internal/metrics"
	"eventTickets/internal/model"
)

func LoggingMiddleware(log *zerolog.Logger) gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		ev := log.Info()
		if status >= 500 {
			ev = log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

type TokenVerifier interface {
	Verify(token string) (*identity.Principal, error)
}

// Auth rejects requests without a valid bearer token and stores the
// principal for the handlers.
func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			dto.UnauthorizedError(c, "Missing bearer token")
			return
		}

		p, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				dto.UnauthorizedError(c, "Invalid or expired token")
				return
			}
			dto.InternalServerError(c)
			return
		}
		identity.WithPrincipal(c, p)
		c.Next()
	}
}

func RequireOrganizer() gin.HandlerFunc {
	return func(c *ginext.Context) {
		p, ok := identity.FromContext(c)
		if !ok {
			dto.UnauthorizedError(c, "Missing bearer token")
			return
		}
		if p.Role != model.RoleOrganizer {
			dto.ForbiddenError(c, "Organizers only")
			return
		}
		c.Next()
	}
}
