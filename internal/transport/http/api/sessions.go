package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

const (
	defaultEventLimit = 1000
	maxEventLimit     = 5000
)

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return detail(c, http.StatusBadRequest, "Invalid request body")
		}
	}
	resp, err := h.service.CreateSession(c.Request().Context(), currentUser(c), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	status := domain.SessionStatus(c.QueryParam("status"))
	resp, err := h.service.ListSessions(c.Request().Context(), currentUser(c), status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetSession handles GET /sessions/:id.
func (h *Handler) GetSession(c echo.Context) error {
	resp, err := h.service.GetSession(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteSession handles DELETE /sessions/:id.
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "deleted"})
}

// ListReports handles GET /sessions/:id/reports.
func (h *Handler) ListReports(c echo.Context) error {
	withHTML := c.QueryParam("format") == "html"
	reports, err := h.service.ListReports(c.Request().Context(), currentUser(c), c.Param("id"), withHTML)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reports)
}

// ListRuns handles GET /sessions/:id/runs.
func (h *Handler) ListRuns(c echo.Context) error {
	runs, err := h.service.ListRuns(c.Request().Context(), currentUser(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

// GetRunEvents handles GET /runs/:run_id/events.
func (h *Handler) GetRunEvents(c echo.Context) error {
	var afterTs int64
	if v := c.QueryParam("after_ts"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return detail(c, http.StatusBadRequest, "after_ts must be an integer")
		}
		afterTs = parsed
	}
	limit := defaultEventLimit
	if v := c.QueryParam("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return detail(c, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, maxEventLimit)
	}

	events, err := h.service.RunEvents(c.Request().Context(), currentUser(c), c.Param("run_id"), afterTs, limit)
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"run_id": c.Param("run_id"),
		"events": events,
	})
}
