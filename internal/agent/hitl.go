package agent

import (
	"strings"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
	"github.com/vinodsharma/lg-deepresearch-agent/policy"
)

// HITLMode selects which calls pause for human review.
type HITLMode string

const (
	HITLNone        HITLMode = "none"
	HITLSensitive   HITLMode = "sensitive"
	HITLCheckpoints HITLMode = "checkpoints"
	HITLFull        HITLMode = "full"
)

// Decisions a reviewer can take.
const (
	DecisionApprove          = "approve"
	DecisionReject           = "reject"
	DecisionModify           = "modify"
	DecisionContinueResearch = "continue_research"
)

// CheckpointSynthesis is raised before the final answer in checkpoints mode.
const CheckpointSynthesis = "synthesis_checkpoint"

// SensitiveTools may require approval in sensitive mode.
var SensitiveTools = []string{tools.NameExecute}

// ParseHITLMode normalizes a mode string. Unknown values are kept as is and
// produce an empty interrupt map.
func ParseHITLMode(s string) HITLMode {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return HITLNone
	}
	return HITLMode(s)
}

// InterruptOn builds the interrupt map for mode.
func InterruptOn(mode HITLMode) map[string]policy.InterruptConfig {
	switch mode {
	case HITLFull:
		return map[string]policy.InterruptConfig{
			"*": {AllowedDecisions: []string{DecisionApprove, DecisionReject, DecisionModify}},
		}
	case HITLSensitive:
		out := make(map[string]policy.InterruptConfig, len(SensitiveTools))
		for _, name := range SensitiveTools {
			out[name] = policy.InterruptConfig{AllowedDecisions: []string{DecisionApprove, DecisionReject}}
		}
		return out
	case HITLCheckpoints:
		return map[string]policy.InterruptConfig{
			CheckpointSynthesis: {AllowedDecisions: []string{DecisionApprove, DecisionReject, DecisionContinueResearch}},
		}
	default:
		return map[string]policy.InterruptConfig{}
	}
}
