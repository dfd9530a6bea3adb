// Package hub fans run events out to the websocket watchers of a thread.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID       string
	ThreadID string
	Conn     *websocket.Conn
	Send     chan []byte
	mu       sync.Mutex

	sendMu sync.Mutex
	closed bool
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Threads maps thread_id to set of connection IDs
	threads map[string]map[string]bool

	// Channels for registration/unregistration
	register   chan *Connection
	unregister chan *Connection

	// Broadcast channel for sending to specific thread
	broadcast chan *ThreadMessage

	done chan struct{}
	mu   sync.RWMutex
}

// ThreadMessage is used to broadcast a message to a thread.
type ThreadMessage struct {
	ThreadID string
	Data     []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		threads:     make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *ThreadMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx ends; later calls to
// Register, Unregister and Broadcast are dropped.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.threads[conn.ThreadID] == nil {
				h.threads[conn.ThreadID] = make(map[string]bool)
			}
			h.threads[conn.ThreadID][conn.ID] = true
			h.mu.Unlock()
			log.Debugf("Connection registered: %s (thread: %s)", conn.ID, conn.ThreadID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if h.threads[conn.ThreadID] != nil {
					delete(h.threads[conn.ThreadID], conn.ID)
					if len(h.threads[conn.ThreadID]) == 0 {
						delete(h.threads, conn.ThreadID)
					}
				}
				conn.closeSend()
			}
			h.mu.Unlock()
			log.Debugf("Connection unregistered: %s", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.threads[msg.ThreadID] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					log.Warnf("Connection %s buffer full, closing", connID)
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a connection watching threadID. It still has to be
// registered.
func (h *Hub) NewConnection(ws *websocket.Conn, threadID string) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		ThreadID: threadID,
		Conn:     ws,
		Send:     make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast sends a message to all connections watching a thread.
func (h *Hub) Broadcast(threadID string, data []byte) {
	select {
	case h.broadcast <- &ThreadMessage{ThreadID: threadID, Data: data}:
	case <-h.done:
	}
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	conn.sendMu.Lock()
	defer conn.sendMu.Unlock()
	if conn.closed {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasWatchers checks if a thread has any active connections.
func (h *Hub) HasWatchers(threadID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.threads[threadID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.closed = true
	close(c.Send)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = errors.New("connection closed")

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
