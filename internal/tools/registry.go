// Package tools implements the research tools the agent can call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

// ExecutorFunc runs a tool with raw JSON arguments and returns text for the model.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool describes a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Execute     ExecutorFunc
}

// NewTool builds a tool whose parameter schema is reflected from Args. The
// executor receives the decoded arguments.
func NewTool[Args any](name, description string, fn func(ctx context.Context, args Args) string) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor[Args](),
		Execute: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args Args
			if len(strings.TrimSpace(string(raw))) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return "", fmt.Errorf("invalid arguments for %s: %w", name, err)
				}
			}
			return fn(ctx, args), nil
		},
	}
}

// SchemaFor reflects the JSON schema of Args without $schema and $id.
func SchemaFor[Args any]() map[string]any {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(new(Args))
	b, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// Registry stores tools keyed by name, preserving registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("executor already registered for %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the named tools in the order given, or every tool in
// registration order when no names are passed. Unknown names are skipped.
func (r *Registry) List(names ...string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(names) == 0 {
		names = r.order
	}
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Execute runs the tool registered under name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if name == "" {
		return "", fmt.Errorf("tool name is required")
	}
	tool, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("no executor registered for %s", name)
	}
	return tool.Execute(ctx, args)
}
