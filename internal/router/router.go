// Package router registers the HTTP routes of the reservation API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication. Currently
// it exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// Middleware groups the per-route middleware built by main. Nil entries
// are skipped.
type Middleware struct {
	Auth      echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterReservations registers intake, cancellation and seat status.
// Intake and cancellation run behind auth and the rate limiter; seat
// status is public and cached.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, mw Middleware) {
	guarded := chain(mw.Auth, mw.RateLimit)
	e.POST("/reserve", h.Reserve, guarded...)
	e.POST("/cancel", h.Cancel, guarded...)
	e.DELETE("/reservations", h.Cancel, guarded...)

	e.GET("/reservations/:eventId/:seatId", h.SeatStatus, chain(mw.Cache)...)
}

// NewMiddleware is a convenience for tests and main: JWT auth from secret,
// the other entries as given.
func NewMiddleware(jwtSecret string, rateLimit, cache echo.MiddlewareFunc) Middleware {
	return Middleware{Auth: middleware.JWTAuth(jwtSecret), RateLimit: rateLimit, Cache: cache}
}

func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
