package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/logger"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorBody{Error: msg})
}

// statusFor maps domain sentinels to HTTP status codes.  Unknown errors
// are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrConcertNotFound), errors.Is(err, repository.ErrInvalidAction):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSeatsExhausted), errors.Is(err, repository.ErrNothingToCancel):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidCapacity):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err.  Internal errors are logged with the request id
// and answered with a generic message; msg overrides the text for mapped
// errors when it is not empty.
func writeError(c echo.Context, log *logger.Logger, err error, msg string) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err)
		if status == http.StatusServiceUnavailable {
			return jsonError(c, status, "request timed out")
		}
		return jsonError(c, status, "internal server error")
	}
	if msg == "" {
		msg = err.Error()
	}
	return jsonError(c, status, msg)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
