package domain

import (
	"encoding/json"
	"time"
)

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	Title *string `json:"title"`
}

// SessionResponse is the public view of a session.
type SessionResponse struct {
	ID        string        `json:"id"`
	Title     *string       `json:"title"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSessionResponse builds the public view of s.
func NewSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// ReportResponse is the public view of a report.
type ReportResponse struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Markdown  string           `json:"markdown"`
	HTML      string           `json:"html,omitempty"`
	JSONData  map[string]any   `json:"json_data"`
	Sources   []map[string]any `json:"sources"`
	CreatedAt time.Time        `json:"created_at"`
}

// ResearchRequest is the body of POST /research/:session_id.
type ResearchRequest struct {
	Query string   `json:"query"`
	Tags  []string `json:"tags,omitempty"`
}

// ToolCallSummary names a tool the agent asked for and the arguments it used.
type ToolCallSummary struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ResearchResponse is the result of a synchronous research query.
type ResearchResponse struct {
	RequestID string            `json:"request_id"`
	SessionID string            `json:"session_id"`
	Query     string            `json:"query"`
	Response  string            `json:"response"`
	ToolCalls []ToolCallSummary `json:"tool_calls"`
}

// ApprovalDecisionRequest represents a decision on a pending interrupt.
type ApprovalDecisionRequest struct {
	Decision  string          `json:"decision"` // approve, reject, modify, continue_research
	Args      json.RawMessage `json:"args,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	DecidedBy string          `json:"decided_by,omitempty"`
}

// ApprovalDecisionResponse is returned after a decision has been recorded.
type ApprovalDecisionResponse struct {
	ApprovalID string         `json:"approval_id"`
	Status     ApprovalStatus `json:"status"`
	ToolCallID string         `json:"tool_call_id"`
	Decision   string         `json:"decision"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
