// Package agent assembles the research agent and runs its tool-calling loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
	"github.com/vinodsharma/lg-deepresearch-agent/policy"
)

const (
	Name        = "research_agent"
	Description = "Deep research agent that searches the web, analyzes documents, and synthesizes comprehensive research reports on any topic."
)

// Defaults applied when Options leaves a limit unset.
const (
	DefaultMaxConcurrentSubagents = 3
	DefaultMaxDelegationRounds    = 3
	DefaultRecursionLimit         = 25
)

// SubAgent describes an agent the orchestrator can delegate to with task.
type SubAgent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompt      string   `json:"-"`
	Tools       []string `json:"tools"`
}

// Researcher returns the researcher sub-agent descriptor.
func Researcher(now time.Time) SubAgent {
	return SubAgent{
		Name:        "researcher",
		Description: "Conducts focused research on a single topic. Give this agent one specific research question at a time.",
		Prompt:      ResearcherPrompt(now),
		Tools:       tools.ResearcherTools,
	}
}

// Info is the public description of the agent.
type Info struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tools       []string   `json:"tools"`
	SubAgents   []SubAgent `json:"subagents"`
}

// ApprovalRequest asks a reviewer to decide on a paused call.
type ApprovalRequest struct {
	RunID            string
	ThreadID         string
	UserID           string
	ToolCallID       string
	ToolName         string
	Args             map[string]any
	AllowedDecisions []string
}

// ApprovalResult is the reviewer's answer. Args replaces the call arguments
// on a modify decision.
type ApprovalResult struct {
	Decision string
	Args     map[string]any
	Reason   string
}

// Approver persists approval requests and blocks until they are decided.
// Cancel withdraws an approval the run stopped waiting for.
type Approver interface {
	Open(ctx context.Context, req ApprovalRequest) (string, error)
	Wait(ctx context.Context, approvalID string) (ApprovalResult, error)
	Cancel(ctx context.Context, approvalID, reason string) error
}

// Options configures an Agent.
type Options struct {
	Model    llm.ChatModel
	Tools    *tools.Registry
	Policy   *policy.Engine
	Approver Approver

	MaxConcurrentSubagents int
	MaxDelegationRounds    int
	RecursionLimit         int

	// Now is used for prompt dates. Defaults to time.Now.
	Now func() time.Time
}

// Agent is the orchestrator with its researcher sub-agent.
type Agent struct {
	opts Options
}

// New assembles an agent.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if opts.Policy == nil {
		engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
		if err != nil {
			return nil, fmt.Errorf("failed to build interrupt policy: %w", err)
		}
		opts.Policy = engine
	}
	if opts.MaxConcurrentSubagents <= 0 {
		opts.MaxConcurrentSubagents = DefaultMaxConcurrentSubagents
	}
	if opts.MaxDelegationRounds <= 0 {
		opts.MaxDelegationRounds = DefaultMaxDelegationRounds
	}
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = DefaultRecursionLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Agent{opts: opts}, nil
}

// Info describes the agent.
func (a *Agent) Info() Info {
	names := append([]string{}, tools.OrchestratorTools...)
	names = append(names, ToolTask, ToolWriteTodos)
	return Info{
		Name:        Name,
		Description: Description,
		Tools:       names,
		SubAgents:   []SubAgent{Researcher(a.opts.Now())},
	}
}

// toolDefinitions converts registry tools to model tool definitions.
func toolDefinitions(list []tools.Tool) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(list))
	for _, t := range list {
		out = append(out, llm.ToolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}
