package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventTickets/cmd/middleware"
	"eventTickets/internal/service"
)

type Routers struct {
	Service        service.Service
	Verifier       middleware.TokenVerifier
	Limiter        *middleware.RateLimiter
	Log            *zerolog.Logger
	GinMode        string
	AllowedOrigins []string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New(r.GinMode)
	mountRoutes(app.Engine, r)
	return app
}

// mountRoutes registers every route on app, which is the ginext engine in
// production and a bare gin engine in tests.
func mountRoutes(app gin.IRouter, r *Routers) {
	app.Use(gin.Recovery())
	app.Use(middleware.LoggingMiddleware(r.Log))
	app.Use(cors.New(corsConfig(r.AllowedOrigins)))

	app.GET("/health", r.Service.Health)
	app.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(r.Verifier)
	organizer := middleware.RequireOrganizer()

	authGroup := app.Group("/auth")
	authGroup.POST("/register", r.Service.RegisterUser)
	authGroup.POST("/login", r.Service.Login)
	authGroup.GET("/verify", auth, r.Service.Verify)

	events := app.Group("/events")
	events.GET("", r.Service.GetAllEvents)
	events.GET("/organizer", auth, organizer, r.Service.GetOrganizerEvents)
	events.GET("/:id", r.Service.GetEvent)
	events.POST("", auth, organizer, r.Service.CreateEvent)
	events.PUT("/:id", auth, organizer, r.Service.UpdateEvent)
	events.DELETE("/:id", auth, organizer, r.Service.DeleteEvent)
	events.POST("/:id/register", auth, r.Limiter.Limit("register"), r.Service.Register)

	tickets := app.Group("/tickets", auth)
	tickets.GET("", r.Service.GetTickets)
	tickets.POST("/scan", organizer, r.Limiter.Limit("scan"), r.Service.Scan)
	tickets.POST("/:id/cancel", r.Service.CancelTicket)

	orders := app.Group("/orders", auth)
	orders.GET("", r.Service.GetOrders)
	orders.GET("/:id", r.Service.GetOrder)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AddAllowHeaders("Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
