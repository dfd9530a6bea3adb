// Package domain defines the core domain models for the research service.
package domain

// SessionStatus represents the lifecycle status of a research session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusActive, SessionStatusCompleted, SessionStatusFailed:
		return true
	}
	return false
}

// RateLimitTier selects the request quota applied to a user.
type RateLimitTier string

const (
	RateLimitTierFree      RateLimitTier = "FREE"
	RateLimitTierPro       RateLimitTier = "PRO"
	RateLimitTierUnlimited RateLimitTier = "UNLIMITED"
)

// RunStatus represents the status of an agent run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusDone    RunStatus = "DONE"
	RunStatusFailed  RunStatus = "FAILED"
)

// ApprovalStatus represents the status of a human-in-the-loop approval.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusModified ApprovalStatus = "MODIFIED"
	ApprovalStatusExpired  ApprovalStatus = "EXPIRED"
)

// Usage actions recorded in the usage log.
const (
	UsageActionCreateSession = "create_session"
	UsageActionResearchQuery = "research_query"
	UsageActionAgentRun      = "agent_run"
)
