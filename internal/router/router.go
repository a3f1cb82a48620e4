// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/ayoubz/gestion-salles/internal/config"
	"github.com/ayoubz/gestion-salles/internal/handler"
	"github.com/ayoubz/gestion-salles/internal/middleware"
)

// Handlers groups every handler the router wires up.
type Handlers struct {
	Auth         *handler.AuthHandler
	Salles       *handler.SalleHandler
	Reservations *handler.ReservationHandler
	Bons         *handler.BonAchatHandler
	Demandes     *handler.DemandeHandler
}

// Register wires all routes.  The room catalog GETs are public and served
// through the Redis response cache; everything else sits behind JWT auth,
// with admin-only routes additionally passing RequireAdmin.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	// Global token-bucket rate limit; fails open without Redis.
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	e.GET("/salles", h.Salles.List, cache)
	e.GET("/salles/:id", h.Salles.Get, cache)

	// Session endpoints that work without a bearer token.
	e.POST("/register", h.Auth.Register)
	e.POST("/login", h.Auth.Login)
	e.POST("/refresh", h.Auth.Refresh)
	e.POST("/forgot-password", h.Auth.ForgotPassword)
	e.GET("/reset-password/check", h.Auth.CheckResetToken)
	e.POST("/reset-password", h.Auth.ResetPassword)

	auth := e.Group("")
	auth.Use(middleware.JWTAuth(cfg.JWTSecret))

	auth.POST("/logout", h.Auth.Logout)
	auth.GET("/user", h.Auth.Me)
	auth.POST("/user/update", h.Auth.UpdateProfile)

	auth.POST("/reservations", h.Reservations.Create)
	auth.GET("/reservations/:id", h.Reservations.Get)
	auth.DELETE("/reservations/:id", h.Reservations.Delete)
	auth.GET("/user-reservations/:userId", h.Reservations.ListByUser)

	auth.GET("/bons-achat", h.Bons.List)
	auth.GET("/bons-achat/:id", h.Bons.Get)
	auth.PUT("/bons-achat/:id", h.Bons.Update)

	auth.POST("/demandes-personnalisees", h.Demandes.Create)
	auth.GET("/demandes-personnalisees", h.Demandes.List)
	auth.GET("/demandes-personnalisees/:id", h.Demandes.Get)
	auth.PUT("/demandes-personnalisees/:id", h.Demandes.Update)
	auth.DELETE("/demandes-personnalisees/:id", h.Demandes.Delete)
	auth.GET("/demandes-personnalisees/:id/suggestions", h.Demandes.Suggestions)

	admin := e.Group("")
	admin.Use(middleware.JWTAuth(cfg.JWTSecret), middleware.RequireAdmin())

	admin.POST("/salles", h.Salles.Create)
	admin.PUT("/salles/:id", h.Salles.Update)
	admin.DELETE("/salles/:id", h.Salles.Delete)

	admin.GET("/reservations", h.Reservations.List)
	admin.PUT("/reservations/:id", h.Reservations.Transition)
	admin.GET("/salle-reservations/:salleId", h.Reservations.ListBySalle)

	admin.POST("/bons-achat", h.Bons.Create)
	admin.DELETE("/bons-achat/:id", h.Bons.Delete)

	admin.GET("/pending-demands", h.Demandes.ListPending)
}
