// Package llm provides an abstraction for chat model clients.
package llm

import "context"

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a function call requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one turn of a conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a chat completion request.
type Request struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the assistant turn produced for a request.
type Response struct {
	Message Message
	Usage   Usage
}

// ChatModel generates assistant turns.
type ChatModel interface {
	// Generate sends a chat completion request (non-streaming).
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Name identifies the underlying model.
	Name() string
}

// Ensure the clients implement ChatModel.
var (
	_ ChatModel = (*Client)(nil)
	_ ChatModel = (*MockClient)(nil)
)
