// Package api provides the HTTP handlers of the research API.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
)

// Version is reported by the root endpoint.
const Version = "0.1.0"

const userKey = "user"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/", h.Root)

	// AG-UI endpoint used by CopilotKit frontends
	e.POST("/copilotkit", h.RunCopilotKit)
	e.GET("/copilotkit/info", h.AgentInfo)

	e.POST("/sessions", h.CreateSession, h.RequireUser)
	e.GET("/sessions", h.ListSessions, h.RequireUser)
	e.GET("/sessions/:id", h.GetSession, h.RequireUser)
	e.DELETE("/sessions/:id", h.DeleteSession, h.RequireUser)
	e.GET("/sessions/:id/reports", h.ListReports, h.RequireUser)
	e.GET("/sessions/:id/runs", h.ListRuns, h.RequireUser)
	e.GET("/runs/:run_id/events", h.GetRunEvents, h.RequireUser)
	e.POST("/research/:session_id", h.Research, h.RequireUser)
	e.POST("/approvals/:approval_id/decide", h.SubmitApprovalDecision, h.RequireUser)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Root describes the API.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Deep Research Agent API",
		"version": Version,
	})
}

// RequireUser authenticates the request from the X-Api-Key header or a
// bearer token and stores the user in the context.
func (h *Handler) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		user, err := h.service.Authenticate(req.Context(), req.Header.Get("X-Api-Key"), req.Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return writeError(c, err)
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(userKey).(*domain.User)
	return user
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, domain.ErrorResponse{Detail: msg})
}

// writeError maps service errors onto status codes.
func writeError(c echo.Context, err error) error {
	var rateErr *service.RateLimitError
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return detail(c, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.As(err, &rateErr):
		return detail(c, http.StatusTooManyRequests, rateErr.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return detail(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, service.ErrRunNotFound):
		return detail(c, http.StatusNotFound, "Run not found")
	case errors.Is(err, service.ErrApprovalNotFound):
		return detail(c, http.StatusNotFound, "Approval not found")
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidDecision),
		errors.Is(err, service.ErrApprovalDecided):
		return detail(c, http.StatusBadRequest, err.Error())
	default:
		log.Errorf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		return detail(c, http.StatusInternalServerError, err.Error())
	}
}
