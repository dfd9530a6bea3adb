// Package http provides the HTTP server implementation for the research API.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/hub"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/transport/http/api"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/transport/ws"
)

// NewServer creates and configures the public HTTP server. The websocket
// watcher endpoint is only mounted when h is not nil.
func NewServer(svc *service.Service, h *hub.Hub, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{"*"},
	}))
	e.Use(echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "deepresearch-api")
	}))

	// Register Routes
	api.NewHandler(svc).RegisterRoutes(e)
	if h != nil {
		e.GET("/ws/sessions/:id", ws.NewServer(h, svc, cfg.AllowedOrigins).HandleWatch)
	}

	return e
}
