package domain

import (
	"encoding/json"
	"time"
)

// User is an API consumer.
type User struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name,omitempty"`
	APIKey        string        `json:"-"`
	RateLimitTier RateLimitTier `json:"rate_limit_tier"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Session groups the research queries of one conversation.
type Session struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Title     *string         `json:"title"`
	Status    SessionStatus   `json:"status"`
	State     json.RawMessage `json:"state,omitempty"`
	Messages  json.RawMessage `json:"messages,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Report is a research result stored for a session.
type Report struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Title     string           `json:"title"`
	Markdown  string           `json:"markdown"`
	JSONData  map[string]any   `json:"json_data"`
	Sources   []map[string]any `json:"sources"`
	CreatedAt time.Time        `json:"created_at"`
}

// UsageLog is one metered API action.
type UsageLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Tokens    *int      `json:"tokens,omitempty"`
	Cost      *float64  `json:"cost,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Run represents a single streamed execution of the agent.
type Run struct {
	RunID     string          `json:"run_id"`
	ThreadID  string          `json:"thread_id"`
	SessionID string          `json:"session_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Status    RunStatus       `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
	Error     json.RawMessage `json:"error,omitempty"`
}

// Event is a journaled outbound protocol event, kept for replay.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Approval is a pending or decided human-in-the-loop interrupt.
type Approval struct {
	ApprovalID       string          `json:"approval_id"`
	RunID            string          `json:"run_id"`
	ToolCallID       string          `json:"tool_call_id"`
	ToolName         string          `json:"tool_name"`
	Args             json.RawMessage `json:"args,omitempty"`
	AllowedDecisions []string        `json:"allowed_decisions"`
	Status           ApprovalStatus  `json:"status"`
	Decision         string          `json:"decision,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	DecidedBy        string          `json:"decided_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
}
