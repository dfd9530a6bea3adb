package agent

import "github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"

// Upstream event tags emitted by a run.
const (
	TagRunStart        = "on_run_start"
	TagRunEnd          = "on_run_end"
	TagRunError        = "on_run_error"
	TagChainStart      = "on_chain_start"
	TagChainEnd        = "on_chain_end"
	TagChatModelStream = "on_chat_model_stream"
	TagChatModelEnd    = "on_chat_model_end"
	TagToolStart       = "on_tool_start"
	TagToolEnd         = "on_tool_end"
	TagInterrupt       = "on_interrupt"
)

// Event is one record of a run's upstream stream.
type Event struct {
	Tag   string
	RunID string
	// Name is the node name for chain events and the tool name for tool events.
	Name string
	// Input carries the tool arguments for tool events.
	Input any
	// Output is the tool result on on_tool_end (a Command, a *ToolMessage
	// or any other value) and the RunResult on on_run_end.
	Output    any
	Chunk     *MessageChunk
	Interrupt *Interrupt
	// Error is the message of an on_run_error event.
	Error string
}

// MessageChunk is a piece of an assistant message.
type MessageChunk struct {
	MessageID string
	Content   string
	ToolCalls []ToolCallChunk
}

// ToolCallChunk is a streamed fragment of a tool call.
type ToolCallChunk struct {
	ID   string
	Name string
	Args string
}

// ToolMessage is the result of one tool call. Name may be empty.
type ToolMessage struct {
	ID         string `mapstructure:"id" json:"id"`
	ToolCallID string `mapstructure:"tool_call_id" json:"tool_call_id"`
	Name       string `mapstructure:"name" json:"name,omitempty"`
	Content    any    `mapstructure:"content" json:"content"`
}

// Command is a tool output that updates run state and carries the tool
// messages produced by the call.
type Command struct {
	Update   map[string]any `mapstructure:"update" json:"update,omitempty"`
	Messages []ToolMessage  `mapstructure:"messages" json:"messages"`
}

// Interrupt describes a call paused for human review.
type Interrupt struct {
	ApprovalID       string         `json:"approval_id"`
	ToolCallID       string         `json:"tool_call_id"`
	ToolName         string         `json:"tool_name"`
	Args             map[string]any `json:"args,omitempty"`
	AllowedDecisions []string       `json:"allowed_decisions"`
}

// Todo is one item of the plan kept by write_todos.
type Todo struct {
	Content string `json:"content"`
	Status  string `json:"status" jsonschema:"enum=pending,enum=in_progress,enum=completed"`
}

// RunResult is the output of on_run_end.
type RunResult struct {
	Response string
	Messages []llm.Message
	Todos    []Todo
	Usage    llm.Usage
}

// ToolCalls lists every tool call requested by the assistant during the run.
func (r *RunResult) ToolCalls() []llm.ToolCall {
	var out []llm.ToolCall
	for _, m := range r.Messages {
		if m.Role == llm.RoleAssistant {
			out = append(out, m.ToolCalls...)
		}
	}
	return out
}
