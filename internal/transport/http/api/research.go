package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

// Research handles POST /research/:session_id.
func (h *Handler) Research(c echo.Context) error {
	var req domain.ResearchRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	resp, err := h.service.Research(c.Request().Context(), currentUser(c), c.Param("session_id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitApprovalDecision handles POST /approvals/:approval_id/decide.
func (h *Handler) SubmitApprovalDecision(c echo.Context) error {
	var req domain.ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Decision == "" {
		return detail(c, http.StatusBadRequest, "decision is required")
	}
	resp, err := h.service.DecideApproval(c.Request().Context(), currentUser(c), c.Param("approval_id"), req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
