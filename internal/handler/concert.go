package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-reservation/internal/logger"
	"github.com/iliyamo/concert-reservation/internal/model"
)

// Catalog is the part of service.CatalogService used by ConcertHandler.
type Catalog interface {
	CreateConcert(ctx context.Context, name string, totalSeats int, description string) (*model.Concert, error)
	ListConcerts(ctx context.Context) ([]model.Concert, error)
	GetConcert(ctx context.Context, id uint64) (*model.Concert, error)
	GetAggregateStats(ctx context.Context) (model.DashboardStats, error)
	DeleteConcert(ctx context.Context, id uint64) error
}

// History is the part of service.HistoryService used by ConcertHandler.
type History interface {
	ListHistory(ctx context.Context) ([]model.HistoryEntry, error)
	ListConcertHistory(ctx context.Context, concertID uint64) ([]model.HistoryEntry, error)
}

// ConcertHandler serves the admin endpoints under /concerts.
type ConcertHandler struct {
	catalog Catalog
	history History
	display *time.Location // zone used for displayDate
	log     *logger.Logger
}

// NewConcertHandler panics on a nil dependency; wiring errors belong at startup.
func NewConcertHandler(catalog Catalog, history History, display *time.Location, log *logger.Logger) *ConcertHandler {
	if catalog == nil || history == nil || log == nil {
		panic("nil dependency passed to NewConcertHandler")
	}
	if display == nil {
		display = time.UTC
	}
	return &ConcertHandler{catalog: catalog, history: history, display: display, log: log}
}

type createConcertRequest struct {
	ConcertName string `json:"concert_name" validate:"required,max=255"`
	Seat        int    `json:"seat" validate:"required,min=1"`
	Description string `json:"description" validate:"max=2000"`
}

// CreateConcert handles POST /concerts/create.
func (h *ConcertHandler) CreateConcert(c echo.Context) error {
	var req createConcertRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}
	req.ConcertName = strings.TrimSpace(req.ConcertName)
	if err := c.Validate(&req); err != nil {
		var verrs ValidationErrors
		if errors.As(err, &verrs) {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "validation failed", "details": verrs})
		}
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	concert, err := h.catalog.CreateConcert(c.Request().Context(), req.ConcertName, req.Seat, req.Description)
	if err != nil {
		return writeError(c, h.log, err, "")
	}
	return c.JSON(http.StatusCreated, concert)
}

// ListConcerts handles GET /concerts.
func (h *ConcertHandler) ListConcerts(c echo.Context) error {
	concerts, err := h.catalog.ListConcerts(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err, "")
	}
	return c.JSON(http.StatusOK, concerts)
}

// GetConcert handles GET /concerts/:id.
func (h *ConcertHandler) GetConcert(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid concert id")
	}
	concert, err := h.catalog.GetConcert(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err, notFoundMessage(id))
	}
	return c.JSON(http.StatusOK, concert)
}

// Dashboard handles GET /concerts/dashboard.
func (h *ConcertHandler) Dashboard(c echo.Context) error {
	stats, err := h.catalog.GetAggregateStats(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err, "")
	}
	return c.JSON(http.StatusOK, stats)
}

// DeleteConcert handles DELETE /concerts/:id.  The concert's history goes
// with it.
func (h *ConcertHandler) DeleteConcert(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid concert id")
	}
	if err := h.catalog.DeleteConcert(c.Request().Context(), id); err != nil {
		return writeError(c, h.log, err, notFoundMessage(id))
	}
	return c.JSON(http.StatusOK, statusBody{
		Status:  "success",
		Message: fmt.Sprintf("Concert with ID %d deleted successfully", id),
	})
}

// ListHistory handles GET /concerts/history.
func (h *ConcertHandler) ListHistory(c echo.Context) error {
	entries, err := h.history.ListHistory(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err, "")
	}
	return c.JSON(http.StatusOK, h.historyViews(entries))
}

// ListConcertHistory handles GET /concerts/:id/history.
func (h *ConcertHandler) ListConcertHistory(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "invalid concert id")
	}
	entries, err := h.history.ListConcertHistory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err, notFoundMessage(id))
	}
	return c.JSON(http.StatusOK, h.historyViews(entries))
}

// historyView is the wire shape of a history entry.  Date is the stored
// UTC instant; DisplayDate is the same instant in the display zone.
type historyView struct {
	ID          uint64        `json:"id"`
	ConcertID   uint64        `json:"concertId"`
	UserID      uint64        `json:"userId"`
	Action      model.Action  `json:"action"`
	Date        string        `json:"date"`
	DisplayDate string        `json:"displayDate"`
	Concert     model.Concert `json:"concertevent"`
	User        model.User    `json:"user"`
}

func (h *ConcertHandler) historyViews(entries []model.HistoryEntry) []historyView {
	out := make([]historyView, 0, len(entries))
	for _, e := range entries {
		at := e.RecordedAt.UTC()
		out = append(out, historyView{
			ID:          e.ID,
			ConcertID:   e.ConcertID,
			UserID:      e.UserID,
			Action:      e.Action,
			Date:        at.Format(time.RFC3339),
			DisplayDate: at.In(h.display).Format(time.RFC3339),
			Concert:     e.Concert,
			User:        e.User,
		})
	}
	return out
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func notFoundMessage(id uint64) string {
	return fmt.Sprintf("Concert with ID %d not found", id)
}
