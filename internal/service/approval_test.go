package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
	"github.com/vinodsharma/lg-deepresearch-agent/tests/helpers"
)

func eventJSON(ev aguievents.Event) map[string]any {
	m := map[string]any{}
	if b, err := ev.ToJSON(); err == nil {
		_ = json.Unmarshal(b, &m)
	}
	return m
}

func executeThenAnswer() llm.ChatModel {
	return llm.NewMockClient(
		llm.Response{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: tools.NameExecute, Arguments: `{"code":"print(1)"}`},
		}}},
		llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: "done"}},
	)
}

// streamUntilInterrupt starts a run in the background and returns the
// approval id announced by its interrupt plus the channel of the events
// that follow.
func streamUntilInterrupt(t *testing.T, env *testEnv, req RunRequest) (string, <-chan map[string]any) {
	t.Helper()
	events := make(chan map[string]any, 64)
	go func() {
		defer close(events)
		for ev := range env.svc.StreamRun(context.Background(), req) {
			events <- eventJSON(ev)
		}
	}()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			require.True(t, ok, "stream ended before the interrupt")
			if e["type"] == "CUSTOM" && e["name"] == agent.TagInterrupt {
				value := e["value"].(map[string]any)
				return value["approval_id"].(string), events
			}
		case <-timeout:
			t.Fatalf("no interrupt within timeout")
		}
	}
}

func drain(t *testing.T, events <-chan map[string]any) []map[string]any {
	t.Helper()
	var out []map[string]any
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("stream did not finish")
		}
	}
}

func toolResult(events []map[string]any, toolCallID string) string {
	for _, e := range events {
		if e["type"] == "TOOL_CALL_RESULT" && e["toolCallId"] == toolCallID {
			return e["content"].(string)
		}
	}
	return ""
}

func TestStreamRunApprovedCall(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, executeThenAnswer(), nil)
	user := helpers.CreateTestUser(t, env.store, "a@example.com", domain.RateLimitTierFree)

	approvalID, events := streamUntilInterrupt(t, env, RunRequest{
		ThreadID: "thread-1",
		RunID:    "run-1",
		UserID:   user.ID,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "run it"}},
		HITLMode: agent.HITLSensitive,
	})
	assert.Contains(t, approvalID, "ap_")

	pending, err := env.store.GetApproval(ctx, approvalID)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, domain.ApprovalStatusPending, pending.Status)
	assert.Equal(t, []string{"approve", "reject"}, pending.AllowedDecisions)
	assert.JSONEq(t, `{"code":"print(1)"}`, string(pending.Args))

	resp, err := env.svc.DecideApproval(ctx, user, approvalID, domain.ApprovalDecisionRequest{Decision: "approve"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, resp.Status)
	assert.Equal(t, "c1", resp.ToolCallID)

	rest := drain(t, events)
	require.NotEmpty(t, rest)
	assert.Equal(t, "RUN_FINISHED", rest[len(rest)-1]["type"])
	assert.Equal(t, "ran print(1)", toolResult(rest, "c1"))

	run, err := env.store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusDone, run.Status)

	decided, err := env.store.GetApproval(ctx, approvalID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, decided.DecidedBy)

	journal, err := env.store.GetEvents(ctx, "run-1", 0, 0)
	require.NoError(t, err)
	var types []string
	for _, e := range journal {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "CUSTOM")
}

func TestStreamRunRejectedCall(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, executeThenAnswer(), nil)
	user := helpers.CreateTestUser(t, env.store, "r@example.com", domain.RateLimitTierFree)

	approvalID, events := streamUntilInterrupt(t, env, RunRequest{
		UserID:   user.ID,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "run it"}},
		HITLMode: agent.HITLSensitive,
	})

	_, err := env.svc.DecideApproval(ctx, user, approvalID, domain.ApprovalDecisionRequest{Decision: "modify"})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	resp, err := env.svc.DecideApproval(ctx, user, approvalID, domain.ApprovalDecisionRequest{Decision: "reject", Reason: "no"})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, resp.Status)

	rest := drain(t, events)
	assert.Equal(t, "Tool call rejected by user.", toolResult(rest, "c1"))

	_, err = env.svc.DecideApproval(ctx, user, approvalID, domain.ApprovalDecisionRequest{Decision: "approve"})
	assert.ErrorIs(t, err, ErrApprovalDecided)
}

func createPendingApproval(t *testing.T, env *testEnv, runUserID string) string {
	t.Helper()
	ctx := context.Background()
	threadID := "t"
	if runUserID != "" {
		session, err := env.store.CreateSession(ctx, runUserID, nil)
		require.NoError(t, err)
		threadID = session.ID
	}
	require.NoError(t, env.store.CreateRun(ctx, &domain.Run{RunID: "run-x", ThreadID: threadID, UserID: runUserID, Status: domain.RunStatusRunning}))
	id, err := env.broker.Open(ctx, agent.ApprovalRequest{
		RunID:            "run-x",
		ToolCallID:       "c9",
		ToolName:         tools.NameExecute,
		Args:             map[string]any{"code": "x"},
		AllowedDecisions: []string{"approve", "reject", "modify"},
	})
	require.NoError(t, err)
	return id
}

func TestDecideApprovalChecks(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("hi"), nil)
	owner := helpers.CreateTestUser(t, env.store, "o@example.com", domain.RateLimitTierFree)
	other := helpers.CreateTestUser(t, env.store, "x@example.com", domain.RateLimitTierFree)
	id := createPendingApproval(t, env, owner.ID)

	_, err := env.svc.DecideApproval(ctx, owner, "ap_missing", domain.ApprovalDecisionRequest{Decision: "approve"})
	assert.ErrorIs(t, err, ErrApprovalNotFound)

	_, err = env.svc.DecideApproval(ctx, other, id, domain.ApprovalDecisionRequest{Decision: "approve"})
	assert.ErrorIs(t, err, ErrApprovalNotFound)

	_, err = env.svc.DecideApproval(ctx, owner, id, domain.ApprovalDecisionRequest{Decision: "continue_research"})
	assert.ErrorIs(t, err, ErrInvalidDecision)

	_, err = env.svc.DecideApproval(ctx, owner, id, domain.ApprovalDecisionRequest{Decision: "modify", Args: json.RawMessage(`[1]`)})
	assert.ErrorIs(t, err, ErrInvalidInput)

	waited := make(chan agent.ApprovalResult, 1)
	go func() {
		res, err := env.broker.Wait(ctx, id)
		assert.NoError(t, err)
		waited <- res
	}()

	resp, err := env.svc.DecideApproval(ctx, owner, id, domain.ApprovalDecisionRequest{
		Decision: "modify",
		Args:     json.RawMessage(`{"code":"print(2)"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusModified, resp.Status)

	select {
	case res := <-waited:
		assert.Equal(t, "modify", res.Decision)
		assert.Equal(t, map[string]any{"code": "print(2)"}, res.Args)
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter not released")
	}
	run, err := env.store.GetRun(ctx, "run-x")
	require.NoError(t, err)
	assert.Equal(t, 1, env.publisher.count(run.ThreadID))
}

func TestSweepExpiresApprovals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("hi"), nil)
	env.broker.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
	id := createPendingApproval(t, env, "")
	env.broker.now = time.Now

	waited := make(chan agent.ApprovalResult, 1)
	go func() {
		res, _ := env.broker.Wait(ctx, id)
		waited <- res
	}()

	env.broker.sweepExpired(ctx)

	select {
	case res := <-waited:
		assert.Equal(t, agent.DecisionReject, res.Decision)
		assert.Equal(t, expiredReason, res.Reason)
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter not released")
	}

	ap, err := env.store.GetApproval(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusExpired, ap.Status)
	assert.Equal(t, systemDecider, ap.DecidedBy)
}

func TestSweepKeepsFreshApprovals(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("hi"), nil)
	id := createPendingApproval(t, env, "")

	env.broker.sweepExpired(ctx)

	ap, err := env.store.GetApproval(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPending, ap.Status)
}

func TestWaitHonoursContext(t *testing.T) {
	env := newTestEnv(t, answerModel("hi"), nil)
	id := createPendingApproval(t, env, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.broker.Wait(ctx, id)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = env.broker.Wait(context.Background(), "ap_unknown")
	assert.ErrorIs(t, err, ErrApprovalNotFound)
}

func TestStreamRunConsumerStopStillJournalsTerminal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("a long answer"), nil)

	for range env.svc.StreamRun(ctx, RunRequest{ThreadID: "t-stop", RunID: "run-stop"}) {
		break
	}

	run, err := env.store.GetRun(ctx, "run-stop")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.NotEqual(t, domain.RunStatusRunning, run.Status)

	journal, err := env.store.GetEvents(ctx, "run-stop", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, journal)
	last := journal[len(journal)-1].Type
	assert.True(t, last == "RUN_FINISHED" || last == "RUN_ERROR", "last journaled event is %s", last)
}

func TestRunRequestFromInput(t *testing.T) {
	in := &agui.RunAgentInput{
		ThreadID:       "t1",
		RunID:          "r1",
		Messages:       []agui.Message{{ID: "m1", Role: "user", Content: json.RawMessage(`"hi"`)}},
		ForwardedProps: map[string]any{"hitl_mode": "full"},
	}
	req := RunRequestFromInput(in)
	assert.Equal(t, "t1", req.ThreadID)
	assert.Equal(t, "r1", req.RunID)
	assert.Equal(t, agent.HITLFull, req.HITLMode)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, req.Messages)

	assert.Equal(t, agent.HITLNone, RunRequestFromInput(&agui.RunAgentInput{}).HITLMode)
}

func TestCancelWithdrawsApproval(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("hi"), nil)
	id := createPendingApproval(t, env, "")

	require.NoError(t, env.broker.Cancel(ctx, id, "context canceled"))

	ap, err := env.store.GetApproval(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusExpired, ap.Status)
	assert.Equal(t, "context canceled", ap.Reason)

	_, err = env.broker.Wait(ctx, id)
	assert.ErrorIs(t, err, ErrApprovalNotFound)

	_, err = env.broker.Decide(ctx, id, "", domain.ApprovalDecisionRequest{Decision: "approve"})
	assert.ErrorIs(t, err, ErrApprovalDecided)
}

type relayFunc func(approvalID string, data []byte)

func (f relayFunc) PublishDecision(approvalID string, data []byte) { f(approvalID, data) }

func TestDecisionReachesWaiterOnOtherInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, answerModel("hi"), nil)
	other := NewApprovalBroker(env.store, time.Minute)
	env.broker.SetRelay(relayFunc(other.Release))

	id, err := other.Open(ctx, agent.ApprovalRequest{
		RunID:            "run-remote",
		ToolCallID:       "c1",
		ToolName:         tools.NameExecute,
		AllowedDecisions: []string{"approve", "reject", "modify"},
	})
	require.NoError(t, err)

	waited := make(chan agent.ApprovalResult, 1)
	go func() {
		res, err := other.Wait(ctx, id)
		assert.NoError(t, err)
		waited <- res
	}()

	_, err = env.broker.Decide(ctx, id, "", domain.ApprovalDecisionRequest{
		Decision: "modify",
		Args:     json.RawMessage(`{"code":"print(3)"}`),
	})
	require.NoError(t, err)

	select {
	case res := <-waited:
		assert.Equal(t, "modify", res.Decision)
		assert.Equal(t, map[string]any{"code": "print(3)"}, res.Args)
	case <-time.After(5 * time.Second):
		t.Fatalf("remote waiter not released")
	}
}
