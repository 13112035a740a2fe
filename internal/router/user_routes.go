package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/handler"
	"github.com/iliyamo/concert-reservation/internal/middleware"
)

// RegisterUser registers the reserve/cancel endpoint.  Every request is
// attributed to defaultUserID and throttled by limiter before it reaches
// the handler.
func RegisterUser(e *echo.Echo, h *handler.ReservationHandler, defaultUserID uint64, limiter, invalidate echo.MiddlewareFunc) {
	g := e.Group("/user", middleware.Identity(defaultUserID), limiter)
	g.POST("/:id/:type", h.SubmitAction, invalidate)
}
