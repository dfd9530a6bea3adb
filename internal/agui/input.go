// Package agui translates agent runs into the AG-UI event protocol.
package agui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
)

// RunAgentInput is the body of an AG-UI run request.
type RunAgentInput struct {
	ThreadID       string          `json:"threadId"`
	RunID          string          `json:"runId"`
	State          json.RawMessage `json:"state,omitempty"`
	Messages       []Message       `json:"messages"`
	Tools          json.RawMessage `json:"tools,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	ForwardedProps map[string]any  `json:"forwardedProps,omitempty"`
}

// Message is a conversation message sent by the frontend.
type Message struct {
	ID         string          `json:"id"`
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCalls  []ToolCall      `json:"toolCalls,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
}

// ToolCall is an assistant tool call in the AG-UI message format.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// DecodeRunAgentInput reads a run request body.
func DecodeRunAgentInput(r io.Reader) (*RunAgentInput, error) {
	var in RunAgentInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode run input: %w", err)
	}
	return &in, nil
}

// HITLMode returns forwardedProps.hitl_mode, or "" when absent.
func (in *RunAgentInput) HITLMode() string {
	if in.ForwardedProps == nil {
		return ""
	}
	s, _ := in.ForwardedProps["hitl_mode"].(string)
	return s
}

// LLMMessages converts the conversation for the chat model. System and
// developer messages are dropped since the agent supplies its own prompt.
func (in *RunAgentInput) LLMMessages() []llm.Message {
	out := make([]llm.Message, 0, len(in.Messages))
	for _, m := range in.Messages {
		switch m.Role {
		case "user":
			out = append(out, llm.Message{Role: llm.RoleUser, Content: messageText(m.Content)})
		case "assistant":
			msg := llm.Message{Role: llm.RoleAssistant, Content: messageText(m.Content)}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
			}
			out = append(out, msg)
		case "tool":
			out = append(out, llm.Message{Role: llm.RoleTool, Content: messageText(m.Content), ToolCallID: m.ToolCallID, Name: m.Name})
		}
	}
	return out
}

// messageText flattens string content or a list of text parts.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, "\n")
	}
	return string(raw)
}
