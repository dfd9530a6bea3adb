package agui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
)

func TestDecodeRunAgentInput(t *testing.T) {
	body := `{
		"threadId": "t1",
		"runId": "r1",
		"state": {},
		"messages": [
			{"id": "1", "role": "system", "content": "ignored"},
			{"id": "2", "role": "user", "content": "hello"},
			{"id": "3", "role": "assistant", "content": "", "toolCalls": [{"id": "c1", "type": "function", "function": {"name": "think_tool", "arguments": "{}"}}]},
			{"id": "4", "role": "tool", "content": "ok", "toolCallId": "c1"},
			{"id": "5", "role": "user", "content": [{"type": "text", "text": "part one"}, {"type": "text", "text": "part two"}]}
		],
		"forwardedProps": {"hitl_mode": "sensitive"}
	}`

	in, err := DecodeRunAgentInput(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "t1", in.ThreadID)
	assert.Equal(t, "r1", in.RunID)
	assert.Equal(t, "sensitive", in.HITLMode())

	msgs := in.LLMMessages()
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, msgs[0])
	assert.Equal(t, []llm.ToolCall{{ID: "c1", Name: "think_tool", Arguments: "{}"}}, msgs[1].ToolCalls)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "part one\npart two", msgs[3].Content)
}

func TestDecodeRunAgentInputRejectsGarbage(t *testing.T) {
	_, err := DecodeRunAgentInput(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestHITLModeAbsent(t *testing.T) {
	in := &RunAgentInput{}
	assert.Equal(t, "", in.HITLMode())
	in.ForwardedProps = map[string]any{"hitl_mode": 3}
	assert.Equal(t, "", in.HITLMode())
}
