package agui

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
)

type outputKind int

const (
	outputOther outputKind = iota
	outputCommand
	outputToolResult
)

// toolOutput is the classified payload of an on_tool_end event.
type toolOutput struct {
	kind     outputKind
	messages []agent.ToolMessage
}

// classifyToolOutput decides once what shape a tool-end payload has. Maps
// such as decoded JSON are decoded with mapstructure.
func classifyToolOutput(v any) toolOutput {
	switch o := v.(type) {
	case *agent.Command:
		if o != nil {
			return toolOutput{kind: outputCommand, messages: toolMessages(o.Messages)}
		}
	case agent.Command:
		return toolOutput{kind: outputCommand, messages: toolMessages(o.Messages)}
	case *agent.ToolMessage:
		if o != nil && o.ToolCallID != "" {
			return toolOutput{kind: outputToolResult, messages: []agent.ToolMessage{*o}}
		}
	case agent.ToolMessage:
		if o.ToolCallID != "" {
			return toolOutput{kind: outputToolResult, messages: []agent.ToolMessage{o}}
		}
	case map[string]any:
		return classifyMap(o)
	}
	return toolOutput{kind: outputOther}
}

func classifyMap(m map[string]any) toolOutput {
	if _, ok := m["tool_call_id"]; ok {
		var msg agent.ToolMessage
		if err := mapstructure.Decode(m, &msg); err != nil || msg.ToolCallID == "" {
			return toolOutput{kind: outputOther}
		}
		return toolOutput{kind: outputToolResult, messages: []agent.ToolMessage{msg}}
	}

	src := m
	if update, ok := m["update"].(map[string]any); ok {
		src = update
	}
	raw, ok := src["messages"].([]any)
	if !ok {
		return toolOutput{kind: outputOther}
	}
	var msgs []agent.ToolMessage
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var msg agent.ToolMessage
		if err := mapstructure.Decode(entry, &msg); err != nil || msg.ToolCallID == "" {
			continue
		}
		msgs = append(msgs, msg)
	}
	return toolOutput{kind: outputCommand, messages: msgs}
}

func toolMessages(in []agent.ToolMessage) []agent.ToolMessage {
	out := make([]agent.ToolMessage, 0, len(in))
	for _, m := range in {
		if m.ToolCallID != "" {
			out = append(out, m)
		}
	}
	return out
}

// jsonSafe encodes v as JSON, falling back to its plain-text form.
func jsonSafe(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// contentText returns string content as is and encodes anything else.
func contentText(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return jsonSafe(v)
}
