// Package policy evaluates human-in-the-loop interrupt rules with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Actions returned by the interrupt policy.
const (
	ActionAllow           = "allow"
	ActionRequireApproval = "require_approval"
	ActionBlock           = "block"
)

// Input kinds. The wildcard entry of an interrupt map only covers tools.
const (
	KindTool       = "tool"
	KindCheckpoint = "checkpoint"
)

// Input is the document the policy is evaluated against.
type Input struct {
	Kind        string                    `json:"kind"`
	ToolName    string                    `json:"tool_name"`
	Args        map[string]any            `json:"args,omitempty"`
	UserID      string                    `json:"user_id,omitempty"`
	InterruptOn map[string]InterruptConfig `json:"interrupt_on"`
}

// InterruptConfig lists the decisions a reviewer may take for one tool.
type InterruptConfig struct {
	AllowedDecisions []string `json:"allowed_decisions"`
}

// Decision is the policy outcome for a single tool call.
type Decision struct {
	Action           string   `mapstructure:"action"`
	AllowedDecisions []string `mapstructure:"allowed_decisions"`
	Reason           string   `mapstructure:"reason"`
}

// RequiresApproval reports whether the call must wait for a reviewer.
func (d Decision) RequiresApproval() bool {
	return d.Action == ActionRequireApproval
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.interrupt_policy.decision"),
		rego.Module("interrupt_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the interrupt policy for one call.
// An undefined result is treated as allow.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Action: ActionAllow, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Decision{Action: val}, nil
	case map[string]any:
		var d Decision
		if err := mapstructure.Decode(val, &d); err != nil {
			return Decision{}, fmt.Errorf("failed to decode policy decision: %w", err)
		}
		if d.Action == "" {
			d.Action = ActionAllow
		}
		return d, nil
	default:
		return Decision{Action: ActionAllow, Reason: "unexpected return type"}, nil
	}
}

// DefaultPolicy matches the call against the interrupt map: an exact tool
// entry wins over the "*" wildcard.
const DefaultPolicy = `
package interrupt_policy

decision := {"action": "require_approval", "allowed_decisions": cfg.allowed_decisions, "reason": "tool"} if {
	cfg := input.interrupt_on[input.tool_name]
} else := {"action": "require_approval", "allowed_decisions": cfg.allowed_decisions, "reason": "wildcard"} if {
	input.kind == "tool"
	cfg := input.interrupt_on["*"]
} else := {"action": "allow", "allowed_decisions": [], "reason": "no interrupt"}
`
