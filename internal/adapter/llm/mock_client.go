package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scripted ChatModel for tests and offline demos.
type MockClient struct {
	mu     sync.Mutex
	script []Response
	fn     func(req *Request) (*Response, error)
	calls  []Request
}

// NewMockClient creates a mock that replays script in order and falls back
// to a canned research flow once the script is exhausted.
func NewMockClient(script ...Response) *MockClient {
	return &MockClient{script: script}
}

// NewMockClientFunc creates a mock that answers every request with fn.
func NewMockClientFunc(fn func(req *Request) (*Response, error)) *MockClient {
	return &MockClient{fn: fn}
}

// Name returns the mock model name.
func (m *MockClient) Name() string {
	return "mock-model"
}

// Calls returns the requests received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate returns the next scripted response.
func (m *MockClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, *req)
	if m.fn != nil {
		fn := m.fn
		m.mu.Unlock()
		return fn(req)
	}
	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		m.mu.Unlock()
		return &resp, nil
	}
	m.mu.Unlock()
	return m.generateMockResponse(req), nil
}

// generateMockResponse thinks once about the last user message and then answers.
func (m *MockClient) generateMockResponse(req *Request) *Response {
	var lastUserMessage string
	sawToolResult := false
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role == RoleTool {
			sawToolResult = true
		}
		if msg.Role == RoleUser {
			lastUserMessage = msg.Content
			break
		}
	}

	if !sawToolResult && hasTool(req.Tools, "think_tool") {
		args, _ := json.Marshal(map[string]string{"thought": "Plan research for: " + truncate(lastUserMessage, 100)})
		return &Response{Message: Message{
			Role: RoleAssistant,
			ToolCalls: []ToolCall{{
				ID:        fmt.Sprintf("call_mock_%d", time.Now().UnixNano()),
				Name:      "think_tool",
				Arguments: string(args),
			}},
		}}
	}

	content := "[MOCK] This is a mock response from the research agent."
	if lastUserMessage != "" {
		content = fmt.Sprintf("[MOCK] Research summary for %q. This is a mock response.", truncate(lastUserMessage, 100))
	}
	return &Response{
		Message: Message{Role: RoleAssistant, Content: content},
		Usage:   Usage{CompletionTokens: len(content) / 4, TotalTokens: len(content) / 4},
	}
}

func hasTool(tools []ToolDefinition, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
