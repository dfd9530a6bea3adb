// Package ws serves websocket watchers of agent runs.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/hub"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/service"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// Message types exchanged with watchers.
const (
	TypeWatching = "watching"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeError    = "error"
)

// ErrorCodeInvalidMessage is sent for frames the server does not understand.
const ErrorCodeInvalidMessage = "invalid_message"

// Message is a control frame. Run events are forwarded as raw AG-UI JSON.
type Message struct {
	Type     string `json:"type"`
	Ts       int64  `json:"ts,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Authorizer decides whether the holder of the credentials may watch a
// session. *service.Service implements it.
type Authorizer interface {
	AuthorizeWatch(ctx context.Context, apiKey, authorization, sessionID string) error
}

// Server handles WebSocket connections.
type Server struct {
	hub      *hub.Hub
	authz    Authorizer
	upgrader websocket.Upgrader
}

// NewServer creates a watcher server. Browsers are only accepted from
// allowedOrigins; "*" accepts any origin.
func NewServer(h *hub.Hub, authz Authorizer, allowedOrigins []string) *Server {
	return &Server{
		hub:   h,
		authz: authz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// HandleWatch upgrades the request and streams the events of the session
// named by the :id path parameter. Only the session owner may watch it.
// Browsers cannot set headers on a websocket handshake, so the api_key and
// token query parameters stand in for X-API-Key and a bearer token.
func (s *Server) HandleWatch(c echo.Context) error {
	threadID := c.Param("id")
	req := c.Request()

	apiKey := req.Header.Get("X-API-Key")
	if apiKey == "" {
		apiKey = c.QueryParam("api_key")
	}
	authorization := req.Header.Get(echo.HeaderAuthorization)
	if authorization == "" {
		if token := c.QueryParam("token"); token != "" {
			authorization = "Bearer " + token
		}
	}
	if err := s.authz.AuthorizeWatch(req.Context(), apiKey, authorization, threadID); err != nil {
		return rejectWatch(c, err)
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Warnf("Failed to upgrade WebSocket: %v", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, threadID)
	s.hub.Register(conn)
	ws.SetReadLimit(maxMessageSize)

	_ = s.hub.SendJSONToConnection(conn, Message{Type: TypeWatching, Ts: time.Now().UnixMilli(), ThreadID: threadID})

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("WebSocket error: %v", err)
			}
			break
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debugf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch msg.Type {
	case TypePing:
		_ = s.hub.SendJSONToConnection(conn, Message{Type: TypePong, Ts: time.Now().UnixMilli(), ThreadID: conn.ThreadID})
	default:
		s.sendError(conn, "unknown message type: "+msg.Type)
	}
}

func rejectWatch(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid authentication credentials"})
	case errors.Is(err, service.ErrSessionNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Session not found"})
	default:
		log.Errorf("watch authorization failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"detail": "Internal server error"})
	}
}

func (s *Server) sendError(conn *hub.Connection, message string) {
	_ = s.hub.SendJSONToConnection(conn, Message{
		Type:     TypeError,
		Ts:       time.Now().UnixMilli(),
		ThreadID: conn.ThreadID,
		Code:     ErrorCodeInvalidMessage,
		Message:  message,
	})
}
