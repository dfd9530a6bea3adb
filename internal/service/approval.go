package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/repository"
)

const (
	approvalSweepInterval = 500 * time.Millisecond
	approvalSweepBatch    = 100
	expiredReason         = "approval timed out"
	canceledReason        = "run stopped waiting"
	systemDecider         = "system"
)

// DecisionRelay carries decisions to the brokers of other instances that
// share the store.
type DecisionRelay interface {
	PublishDecision(approvalID string, data []byte)
}

// ApprovalBroker persists human-in-the-loop approvals and hands decisions
// back to the waiting agent runs. A decision for a run waiting on another
// instance goes out through the relay, when one is set.
type ApprovalBroker struct {
	store   store.Store
	timeout time.Duration
	now     func() time.Time
	relay   DecisionRelay

	mu      sync.Mutex
	waiters map[string]chan agent.ApprovalResult
}

var _ agent.Approver = (*ApprovalBroker)(nil)

// NewApprovalBroker creates a broker whose pending approvals expire after
// timeout.
func NewApprovalBroker(st store.Store, timeout time.Duration) *ApprovalBroker {
	return &ApprovalBroker{
		store:   st,
		timeout: timeout,
		now:     time.Now,
		waiters: make(map[string]chan agent.ApprovalResult),
	}
}

// SetRelay makes decisions reach runs waiting on other instances. Call it
// before the broker is used.
func (b *ApprovalBroker) SetRelay(r DecisionRelay) {
	b.relay = r
}

// Release hands a decision published by another instance to the local
// waiter, if any.
func (b *ApprovalBroker) Release(approvalID string, data []byte) {
	var res agent.ApprovalResult
	if err := json.Unmarshal(data, &res); err != nil {
		log.Warnf("dropping malformed decision for approval %s: %v", approvalID, err)
		return
	}
	b.resolveLocal(approvalID, res)
}

// Open stores a pending approval and returns its id.
func (b *ApprovalBroker) Open(ctx context.Context, req agent.ApprovalRequest) (string, error) {
	var args json.RawMessage
	if req.Args != nil {
		raw, err := json.Marshal(req.Args)
		if err != nil {
			return "", fmt.Errorf("failed to marshal approval args: %w", err)
		}
		args = raw
	}

	approval := &domain.Approval{
		ApprovalID:       "ap_" + uuid.New().String(),
		RunID:            req.RunID,
		ToolCallID:       req.ToolCallID,
		ToolName:         req.ToolName,
		Args:             args,
		AllowedDecisions: req.AllowedDecisions,
		Status:           domain.ApprovalStatusPending,
		CreatedAt:        b.now(),
	}

	b.mu.Lock()
	b.waiters[approval.ApprovalID] = make(chan agent.ApprovalResult, 1)
	b.mu.Unlock()

	if err := b.store.CreateApproval(ctx, approval); err != nil {
		b.remove(approval.ApprovalID)
		return "", fmt.Errorf("failed to create approval: %w", err)
	}
	return approval.ApprovalID, nil
}

// Wait blocks until the approval is decided, expires or ctx ends.
func (b *ApprovalBroker) Wait(ctx context.Context, approvalID string) (agent.ApprovalResult, error) {
	b.mu.Lock()
	ch, ok := b.waiters[approvalID]
	b.mu.Unlock()
	if !ok {
		return agent.ApprovalResult{}, ErrApprovalNotFound
	}
	defer b.remove(approvalID)

	select {
	case <-ctx.Done():
		return agent.ApprovalResult{}, ctx.Err()
	case res := <-ch:
		return res, nil
	}
}

// Cancel withdraws an approval whose run stopped waiting. A still pending
// row is marked expired so it cannot be decided later.
func (b *ApprovalBroker) Cancel(ctx context.Context, approvalID, reason string) error {
	b.remove(approvalID)
	if reason == "" {
		reason = canceledReason
	}
	if _, err := b.store.DecideApproval(ctx, approvalID, domain.ApprovalStatusExpired, agent.DecisionReject, reason, systemDecider); err != nil {
		return fmt.Errorf("failed to cancel approval: %w", err)
	}
	return nil
}

// Decide records a decision on a pending approval and releases its run.
// userID scopes the lookup to approvals of the user's own runs; runs
// started without a user can be decided by anyone.
func (b *ApprovalBroker) Decide(ctx context.Context, approvalID, userID string, req domain.ApprovalDecisionRequest) (*domain.Approval, error) {
	approval, err := b.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	if approval == nil {
		return nil, ErrApprovalNotFound
	}
	run, err := b.store.GetRun(ctx, approval.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run != nil && run.UserID != "" && run.UserID != userID {
		return nil, ErrApprovalNotFound
	}
	if approval.Status != domain.ApprovalStatusPending {
		return nil, ErrApprovalDecided
	}
	if !slices.Contains(approval.AllowedDecisions, req.Decision) {
		return nil, fmt.Errorf("%w: %q is not one of %v", ErrInvalidDecision, req.Decision, approval.AllowedDecisions)
	}

	var args map[string]any
	if len(req.Args) > 0 && string(req.Args) != "null" {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, fmt.Errorf("%w: args must be an object", ErrInvalidInput)
		}
	}

	decidedBy := req.DecidedBy
	if decidedBy == "" {
		decidedBy = userID
	}
	status := decisionStatus(req.Decision)
	updated, err := b.store.DecideApproval(ctx, approvalID, status, req.Decision, req.Reason, decidedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to update approval: %w", err)
	}
	if !updated {
		return nil, ErrApprovalDecided
	}

	b.resolve(approvalID, agent.ApprovalResult{Decision: req.Decision, Args: args, Reason: req.Reason})

	approval.Status = status
	approval.Decision = req.Decision
	approval.Reason = req.Reason
	approval.DecidedBy = decidedBy
	return approval, nil
}

// RunTimeoutMonitor expires stale approvals until ctx ends.
func (b *ApprovalBroker) RunTimeoutMonitor(ctx context.Context) {
	ticker := time.NewTicker(approvalSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweepExpired(ctx)
		}
	}
}

// sweepExpired marks approvals pending for longer than the timeout as
// expired; their runs continue as if the call was rejected.
func (b *ApprovalBroker) sweepExpired(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	expired, err := b.store.ListExpiredApprovals(sweepCtx, b.now().Add(-b.timeout), approvalSweepBatch)
	if err != nil {
		log.Warnf("approval timeout sweep failed: %v", err)
		return
	}

	for _, ap := range expired {
		updated, err := b.store.DecideApproval(sweepCtx, ap.ApprovalID, domain.ApprovalStatusExpired, agent.DecisionReject, expiredReason, systemDecider)
		if err != nil {
			log.Warnf("failed to expire approval %s: %v", ap.ApprovalID, err)
			continue
		}
		if !updated {
			continue
		}
		log.Infof("approval %s for %s expired", ap.ApprovalID, ap.ToolName)
		b.resolve(ap.ApprovalID, agent.ApprovalResult{Decision: agent.DecisionReject, Reason: expiredReason})
	}
}

// resolve hands a result to the run waiting on approvalID. Without a local
// waiter the result is relayed to the other instances.
func (b *ApprovalBroker) resolve(approvalID string, res agent.ApprovalResult) {
	if b.resolveLocal(approvalID, res) || b.relay == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		log.Warnf("failed to encode decision for approval %s: %v", approvalID, err)
		return
	}
	b.relay.PublishDecision(approvalID, data)
}

func (b *ApprovalBroker) resolveLocal(approvalID string, res agent.ApprovalResult) bool {
	b.mu.Lock()
	ch, ok := b.waiters[approvalID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- res:
	default:
	}
	return true
}

func (b *ApprovalBroker) remove(approvalID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.waiters, approvalID)
}

func decisionStatus(decision string) domain.ApprovalStatus {
	switch decision {
	case agent.DecisionReject:
		return domain.ApprovalStatusRejected
	case agent.DecisionModify:
		return domain.ApprovalStatusModified
	default:
		return domain.ApprovalStatusApproved
	}
}

// DecideApproval records user's decision and publishes it to the watchers
// of the run's thread.
func (s *Service) DecideApproval(ctx context.Context, user *domain.User, approvalID string, req domain.ApprovalDecisionRequest) (*domain.ApprovalDecisionResponse, error) {
	approval, err := s.approvals.Decide(ctx, approvalID, user.ID, req)
	if err != nil {
		return nil, err
	}
	resp := &domain.ApprovalDecisionResponse{
		ApprovalID: approval.ApprovalID,
		Status:     approval.Status,
		ToolCallID: approval.ToolCallID,
		Decision:   approval.Decision,
	}

	run, err := s.store.GetRun(ctx, approval.RunID)
	if err != nil {
		log.Warnf("failed to get run %s: %v", approval.RunID, err)
	} else if run != nil {
		watched := s.watchedThread(ctx, RunRequest{ThreadID: run.ThreadID, RunID: run.RunID, UserID: run.UserID})
		s.recordEvent(ctx, run.RunID, watched, aguievents.NewCustomEvent("on_approval_decision", aguievents.WithValue(resp)))
	}
	return resp, nil
}
