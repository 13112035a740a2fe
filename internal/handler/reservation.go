package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/logger"
	"github.com/iliyamo/concert-reservation/internal/middleware"
	"github.com/iliyamo/concert-reservation/internal/repository"
	"github.com/iliyamo/concert-reservation/internal/service"
)

// Reservations is the part of service.ReservationService used by
// ReservationHandler.
type Reservations interface {
	SubmitAction(ctx context.Context, concertID uint64, action string, userID uint64) (service.Outcome, error)
}

// ReservationHandler serves the user-facing reserve and cancel endpoint.
type ReservationHandler struct {
	reservations Reservations
	log          *logger.Logger
}

func NewReservationHandler(reservations Reservations, log *logger.Logger) *ReservationHandler {
	if reservations == nil || log == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{reservations: reservations, log: log}
}

// SubmitAction handles POST /user/:id/:type where type is reserve or cancel.
func (h *ReservationHandler) SubmitAction(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid concert id")
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		return jsonError(c, http.StatusUnauthorized, "unknown user")
	}
	action := c.Param("type")

	out, err := h.reservations.SubmitAction(c.Request().Context(), id, action, userID)
	if err != nil {
		var msg string
		switch {
		case errors.Is(err, repository.ErrConcertNotFound):
			msg = notFoundMessage(id)
		case errors.Is(err, repository.ErrInvalidAction):
			msg = fmt.Sprintf("Invalid seat type: %s", action)
		case errors.Is(err, repository.ErrSeatsExhausted):
			msg = fmt.Sprintf("No seats left for concert ID %d", id)
		case errors.Is(err, repository.ErrNothingToCancel):
			msg = fmt.Sprintf("No reserved seat to cancel for concert ID %d", id)
		}
		return writeError(c, h.log, err, msg)
	}
	return c.JSON(http.StatusOK, statusBody{Status: out.Status, Message: out.Message})
}
