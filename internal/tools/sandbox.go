package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Execution is the outcome of running code in a sandbox.
type Execution struct {
	Stdout  []string
	Stderr  []string
	Error   string
	Results []ExecutionResult
}

// ExecutionResult is a rich output such as a chart or an expression value.
type ExecutionResult struct {
	Text string
	PNG  string
}

// Sandbox runs untrusted Python code in isolation.
type Sandbox interface {
	Run(ctx context.Context, code string, timeout time.Duration) (*Execution, error)
}

// ExecuteArgs are the arguments of e2b_execute.
type ExecuteArgs struct {
	Code    string `json:"code" jsonschema:"description=Python code to execute."`
	Timeout int    `json:"timeout,omitempty" jsonschema:"description=Maximum execution time in seconds (default 60).,default=60"`
}

// CodeExecutor exposes a sandbox as the e2b_execute tool.
type CodeExecutor struct {
	Sandbox Sandbox
	// MissingCredential is reported instead of running when set.
	MissingCredential string
	DefaultTimeout    time.Duration
}

// Tool returns the e2b_execute tool.
func (c *CodeExecutor) Tool() Tool {
	return NewTool("e2b_execute",
		"Execute Python code in a secure sandbox. Use this for data analysis, calculations, chart generation, "+
			"or any code that needs to run safely in isolation.",
		c.Execute)
}

// Execute runs args.Code and formats the execution for the model.
func (c *CodeExecutor) Execute(ctx context.Context, args ExecuteArgs) string {
	if c.MissingCredential != "" {
		return "Error: " + c.MissingCredential + " environment variable not set"
	}
	timeout := time.Duration(args.Timeout) * time.Second
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	exec, err := c.Sandbox.Run(ctx, args.Code, timeout)
	if err != nil {
		return fmt.Sprintf("Error executing code: %v", err)
	}
	return formatExecution(exec)
}

func formatExecution(e *Execution) string {
	var parts []string
	if len(e.Stdout) > 0 {
		parts = append(parts, fmt.Sprintf("**Output:**\n```\n%s\n```", strings.Join(e.Stdout, "")))
	}
	if len(e.Stderr) > 0 {
		parts = append(parts, fmt.Sprintf("**Errors:**\n```\n%s\n```", strings.Join(e.Stderr, "")))
	}
	if e.Error != "" {
		parts = append(parts, "**Execution Error:**\n"+e.Error)
	}
	for i, r := range e.Results {
		switch {
		case r.PNG != "":
			parts = append(parts, fmt.Sprintf("**Chart %d:** [Image generated]", i+1))
		case r.Text != "":
			parts = append(parts, fmt.Sprintf("**Result %d:**\n%s", i+1, r.Text))
		}
	}
	if len(parts) == 0 {
		return "Code executed successfully with no output."
	}
	return strings.Join(parts, "\n\n")
}
