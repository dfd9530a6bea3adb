package tools

import "context"

// ThinkArgs are the arguments of think_tool.
type ThinkArgs struct {
	Thought string `json:"thought" jsonschema:"description=Your strategic thinking about the current task."`
}

// ThinkTool lets the model pause and record its reasoning.
func ThinkTool() Tool {
	return NewTool("think_tool",
		"Use this tool to pause and think strategically about your approach.",
		func(_ context.Context, args ThinkArgs) string {
			return "Thought noted: " + args.Thought
		})
}
