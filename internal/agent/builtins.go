package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
)

// Runtime tools handled by the agent itself.
const (
	ToolTask       = "task"
	ToolWriteTodos = "write_todos"
)

const (
	msgDelegationLimit = "Delegation limit reached; synthesize with the findings you have."
	msgRejected        = "Tool call rejected by user."
	msgBlocked         = "Tool call blocked by policy."
)

// TaskArgs are the arguments of task.
type TaskArgs struct {
	Description  string `json:"description" jsonschema:"description=The research question for the sub-agent"`
	SubagentType string `json:"subagent_type" jsonschema:"description=Name of the sub-agent to use"`
}

// WriteTodosArgs are the arguments of write_todos.
type WriteTodosArgs struct {
	Todos []Todo `json:"todos" jsonschema:"description=The full updated todo list"`
}

func taskDefinition(subagents []SubAgent) llm.ToolDefinition {
	var b strings.Builder
	b.WriteString("Launch a sub-agent to handle a focused task. Available agents:\n")
	for _, s := range subagents {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return llm.ToolDefinition{
		Name:        ToolTask,
		Description: strings.TrimSpace(b.String()),
		Parameters:  tools.SchemaFor[TaskArgs](),
	}
}

func writeTodosDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolWriteTodos,
		Description: "Create or update the research plan as a list of todos with a status each.",
		Parameters:  tools.SchemaFor[WriteTodosArgs](),
	}
}

func todosMessage(todos []Todo) string {
	b, err := json.Marshal(todos)
	if err != nil {
		return fmt.Sprintf("Updated todo list to %v", todos)
	}
	return "Updated todo list to " + string(b)
}
