package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/handler"
)

// RegisterConcerts registers the admin endpoints under /concerts.  Reads
// go through the response cache; writes invalidate it on success.
func RegisterConcerts(e *echo.Echo, h *handler.ConcertHandler, cache, invalidate echo.MiddlewareFunc) {
	g := e.Group("/concerts")

	g.POST("/create", h.CreateConcert, invalidate)
	g.DELETE("/:id", h.DeleteConcert, invalidate)

	// Static segments take precedence over /:id in echo's router.
	g.GET("", h.ListConcerts, cache)
	g.GET("/dashboard", h.Dashboard, cache)
	g.GET("/history", h.ListHistory, cache)
	g.GET("/:id", h.GetConcert, cache)
	g.GET("/:id/history", h.ListConcertHistory, cache)
}
