package api

import (
	"net/http"

	aguisse "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/encoding/sse"
	"github.com/labstack/echo/v4"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
)

// RunCopilotKit handles POST /copilotkit. The translated events of the run
// are streamed back as server-sent events.
func (h *Handler) RunCopilotKit(c echo.Context) error {
	in, err := agui.DecodeRunAgentInput(c.Request().Body)
	if err != nil {
		return detail(c, http.StatusBadRequest, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	writer := aguisse.NewSSEWriter()
	for event := range h.service.StreamRun(ctx, service.RunRequestFromInput(in)) {
		// An invalid event is skipped; only a failed write ends the stream.
		if err := event.Validate(); err != nil {
			log.Warnf("copilotkit: dropping invalid %s event: %v", event.Type(), err)
			continue
		}
		if err := writer.WriteEvent(ctx, resp, event); err != nil {
			log.Debugf("copilotkit: client went away: %v", err)
			return nil
		}
	}
	return nil
}

// AgentInfo handles GET /copilotkit/info.
func (h *Handler) AgentInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.AgentInfo())
}
