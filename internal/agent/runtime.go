package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/observe"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/tools"
	"github.com/vinodsharma/lg-deepresearch-agent/policy"
)

// RunInput starts a run.
type RunInput struct {
	ThreadID string
	RunID    string
	UserID   string
	Messages []llm.Message
	HITLMode HITLMode
}

// Stream runs the agent and yields its upstream events. Failures are yielded
// as a final error; the sequence never yields after an error.
func (a *Agent) Stream(ctx context.Context, in RunInput) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pool, err := ants.NewPool(a.opts.MaxConcurrentSubagents)
		if err != nil {
			yield(Event{}, fmt.Errorf("failed to create worker pool: %w", err))
			return
		}
		defer pool.Release()

		if in.RunID == "" {
			in.RunID = uuid.NewString()
		}
		if in.ThreadID == "" {
			in.ThreadID = uuid.NewString()
		}

		events := make(chan Event)
		r := &run{
			agent:       a,
			in:          in,
			interruptOn: InterruptOn(in.HITLMode),
			events:      events,
			pool:        pool,
			researcher:  Researcher(a.opts.Now()),
		}

		var runErr error
		go func() {
			defer close(events)
			defer func() {
				if p := recover(); p != nil {
					runErr = fmt.Errorf("agent panic: %v", p)
				}
			}()
			runErr = r.execute(ctx)
		}()

		for ev := range events {
			if !yield(ev, nil) {
				cancel()
				for range events {
				}
				return
			}
		}
		if runErr != nil {
			yield(Event{}, runErr)
		}
	}
}

// Invoke runs the agent to completion.
func (a *Agent) Invoke(ctx context.Context, in RunInput) (*RunResult, error) {
	var result *RunResult
	for ev, err := range a.Stream(ctx, in) {
		if err != nil {
			return nil, err
		}
		if ev.Tag == TagRunEnd {
			if r, ok := ev.Output.(*RunResult); ok {
				result = r
			}
		}
	}
	if result == nil {
		return nil, errors.New("run ended without a result")
	}
	return result, nil
}

type run struct {
	agent       *Agent
	in          RunInput
	interruptOn map[string]policy.InterruptConfig
	events      chan<- Event
	pool        *ants.Pool
	researcher  SubAgent

	mu               sync.Mutex
	todos            []Todo
	delegationRounds int
	usage            llm.Usage
}

type loopSpec struct {
	node         string
	tools        []llm.ToolDefinition
	toolNames    []string
	allowed      map[string]bool
	orchestrator bool
}

func newLoopSpec(node string, defs []llm.ToolDefinition, orchestrator bool) loopSpec {
	spec := loopSpec{node: node, tools: defs, allowed: make(map[string]bool, len(defs)), orchestrator: orchestrator}
	for _, d := range defs {
		spec.allowed[d.Name] = true
		spec.toolNames = append(spec.toolNames, d.Name)
	}
	return spec
}

func (r *run) orchestratorSpec() loopSpec {
	defs := toolDefinitions(r.agent.opts.Tools.List(tools.OrchestratorTools...))
	defs = append(defs, taskDefinition([]SubAgent{r.researcher}), writeTodosDefinition())
	return newLoopSpec("model", defs, true)
}

func (r *run) researcherSpec() loopSpec {
	return newLoopSpec(r.researcher.Name, toolDefinitions(r.agent.opts.Tools.List(r.researcher.Tools...)), false)
}

func (r *run) emit(ctx context.Context, ev Event) error {
	ev.RunID = r.in.RunID
	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *run) execute(ctx context.Context) error {
	if err := r.emit(ctx, Event{Tag: TagRunStart, Name: Name}); err != nil {
		return err
	}

	history := make([]llm.Message, 0, len(r.in.Messages)+1)
	history = append(history, llm.Message{Role: llm.RoleSystem, Content: OrchestratorPrompt(r.agent.opts.Now())})
	history = append(history, r.in.Messages...)

	history, text, err := r.loop(ctx, r.orchestratorSpec(), history)
	if err != nil {
		return err
	}

	r.mu.Lock()
	result := &RunResult{
		Response: text,
		Messages: history[1:],
		Todos:    append([]Todo(nil), r.todos...),
		Usage:    r.usage,
	}
	r.mu.Unlock()
	return r.emit(ctx, Event{Tag: TagRunEnd, Name: Name, Output: result})
}

// loop calls the model and runs the tools it asks for until it answers
// without tool calls.
func (r *run) loop(ctx context.Context, spec loopSpec, history []llm.Message) ([]llm.Message, string, error) {
	limit := r.agent.opts.RecursionLimit
	for step := 0; ; step++ {
		if step >= limit {
			return history, "", fmt.Errorf("recursion limit of %d reached without finishing", limit)
		}
		if err := ctx.Err(); err != nil {
			return history, "", err
		}

		msg, err := r.callModel(ctx, spec, history)
		if err != nil {
			return history, "", err
		}
		history = append(history, msg)

		if len(msg.ToolCalls) == 0 {
			if spec.orchestrator {
				cont, reason, err := r.checkpoint(ctx, msg.Content)
				if err != nil {
					return history, "", err
				}
				if cont {
					history = append(history, llm.Message{Role: llm.RoleUser, Content: continueResearchMessage(reason)})
					continue
				}
			}
			return history, msg.Content, nil
		}

		history = append(history, r.runTools(ctx, spec, msg.ToolCalls)...)
	}
}

func (r *run) callModel(ctx context.Context, spec loopSpec, history []llm.Message) (llm.Message, error) {
	if err := r.emit(ctx, Event{Tag: TagChainStart, Name: spec.node}); err != nil {
		return llm.Message{}, err
	}

	model := r.agent.opts.Model
	spanCtx, span := observe.StartSpan(ctx, "chat_model",
		attribute.String("agent.node", spec.node),
		attribute.String("llm.model", model.Name()),
	)
	resp, err := model.Generate(spanCtx, &llm.Request{Messages: history, Tools: spec.tools})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return llm.Message{}, fmt.Errorf("model call failed: %w", err)
	}
	span.SetAttributes(attribute.Int("llm.usage.total_tokens", resp.Usage.TotalTokens))
	span.End()

	r.mu.Lock()
	r.usage.PromptTokens += resp.Usage.PromptTokens
	r.usage.CompletionTokens += resp.Usage.CompletionTokens
	r.usage.TotalTokens += resp.Usage.TotalTokens
	r.mu.Unlock()

	msg := resp.Message
	msg.Role = llm.RoleAssistant
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()[:8]
		}
	}

	messageID := newMessageID()
	if msg.Content != "" {
		if err := r.emit(ctx, Event{Tag: TagChatModelStream, Name: spec.node, Chunk: &MessageChunk{MessageID: messageID, Content: msg.Content}}); err != nil {
			return llm.Message{}, err
		}
	}
	if err := r.emit(ctx, Event{Tag: TagChatModelEnd, Name: spec.node, Output: msg, Chunk: &MessageChunk{MessageID: messageID}}); err != nil {
		return llm.Message{}, err
	}
	if err := r.emit(ctx, Event{Tag: TagChainEnd, Name: spec.node}); err != nil {
		return llm.Message{}, err
	}
	return msg, nil
}

// runTools executes the calls of one model turn. Orchestrator calls fan out
// on the run's worker pool; sub-agent calls run in order.
func (r *run) runTools(ctx context.Context, spec loopSpec, calls []llm.ToolCall) []llm.Message {
	allowTask := true
	if spec.orchestrator && hasCall(calls, ToolTask) {
		r.mu.Lock()
		r.delegationRounds++
		allowTask = r.delegationRounds <= r.agent.opts.MaxDelegationRounds
		r.mu.Unlock()
	}

	results := make([]llm.Message, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		job := func() {
			defer wg.Done()
			results[i] = r.runTool(ctx, spec, call, allowTask)
		}
		wg.Add(1)
		if !spec.orchestrator || len(calls) == 1 {
			job()
			continue
		}
		if err := r.pool.Submit(job); err != nil {
			log.Warnf("worker pool rejected tool %s: %v", call.Name, err)
			job()
		}
	}
	wg.Wait()
	return results
}

func (r *run) runTool(ctx context.Context, spec loopSpec, call llm.ToolCall, allowTask bool) (msg llm.Message) {
	msg = llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Name: call.Name}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("tool %s panicked: %v", call.Name, p)
			msg.Content = fmt.Sprintf("Error: %s failed: %v", call.Name, p)
		}
	}()

	args := decodeArgs(call.Arguments)
	if err := r.emit(ctx, Event{Tag: TagToolStart, Name: call.Name, Input: args}); err != nil {
		msg.Content = "Error: " + err.Error()
		return msg
	}

	raw := json.RawMessage(call.Arguments)
	var output any
	decision, err := r.evaluate(ctx, policy.KindTool, call.Name, args)
	switch {
	case err != nil:
		msg.Content = "Error: " + err.Error()
	case decision.Action == policy.ActionBlock:
		msg.Content = msgBlocked
	case decision.RequiresApproval():
		res := r.requestApproval(ctx, call.ID, call.Name, args, decision.AllowedDecisions)
		switch res.Decision {
		case DecisionApprove:
			msg.Content, output = r.dispatch(ctx, spec, call, raw, allowTask)
		case DecisionModify:
			if res.Args != nil {
				args = res.Args
				if b, err := json.Marshal(args); err == nil {
					raw = b
				}
			}
			msg.Content, output = r.dispatch(ctx, spec, call, raw, allowTask)
		default:
			msg.Content = msgRejected
		}
	default:
		msg.Content, output = r.dispatch(ctx, spec, call, raw, allowTask)
	}

	if output == nil {
		output = &ToolMessage{ID: newMessageID(), ToolCallID: call.ID, Name: call.Name, Content: msg.Content}
	}
	if err := r.emit(ctx, Event{Tag: TagToolEnd, Name: call.Name, Input: args, Output: output}); err != nil {
		log.Debugf("tool end of %s not delivered: %v", call.Name, err)
	}
	return msg
}

// dispatch executes one approved call and returns the text for the model
// plus the structured tool-end output, nil for plain tool messages.
func (r *run) dispatch(ctx context.Context, spec loopSpec, call llm.ToolCall, raw json.RawMessage, allowTask bool) (string, any) {
	switch {
	case spec.orchestrator && call.Name == ToolTask:
		content := r.delegate(ctx, raw, allowTask)
		return content, &Command{Messages: []ToolMessage{{ID: newMessageID(), ToolCallID: call.ID, Content: content}}}
	case spec.orchestrator && call.Name == ToolWriteTodos:
		content, todos, ok := r.writeTodos(raw)
		if !ok {
			return content, nil
		}
		return content, &Command{
			Update:   map[string]any{"todos": todos},
			Messages: []ToolMessage{{ID: newMessageID(), ToolCallID: call.ID, Name: ToolWriteTodos, Content: content}},
		}
	case !spec.allowed[call.Name]:
		return fmt.Sprintf("Error: %s is not a valid tool, try one of [%s].", call.Name, strings.Join(spec.toolNames, ", ")), nil
	}

	spanCtx, span := observe.StartSpan(ctx, "tool", attribute.String("tool.name", call.Name))
	defer span.End()
	out, err := r.agent.opts.Tools.Execute(spanCtx, call.Name, raw)
	if err != nil {
		span.RecordError(err)
		return "Error: " + err.Error(), nil
	}
	return out, nil
}

func (r *run) delegate(ctx context.Context, raw json.RawMessage, allowTask bool) string {
	if !allowTask {
		return msgDelegationLimit
	}
	var args TaskArgs
	if err := json.Unmarshal(raw, &args); err != nil || strings.TrimSpace(args.Description) == "" {
		return "Error: task requires a description"
	}
	if args.SubagentType != "" && args.SubagentType != r.researcher.Name {
		return fmt.Sprintf("Error: invoked agent of type %s, the only allowed types are [%s]", args.SubagentType, r.researcher.Name)
	}

	history := []llm.Message{
		{Role: llm.RoleSystem, Content: r.researcher.Prompt},
		{Role: llm.RoleUser, Content: args.Description},
	}
	_, text, err := r.loop(ctx, r.researcherSpec(), history)
	if err != nil {
		return fmt.Sprintf("Error: %s failed: %v", r.researcher.Name, err)
	}
	return text
}

func (r *run) writeTodos(raw json.RawMessage) (string, []Todo, bool) {
	var args WriteTodosArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "Error: invalid todos: " + err.Error(), nil, false
	}
	r.mu.Lock()
	r.todos = args.Todos
	r.mu.Unlock()
	return todosMessage(args.Todos), args.Todos, true
}

func (r *run) evaluate(ctx context.Context, kind, name string, args map[string]any) (policy.Decision, error) {
	if len(r.interruptOn) == 0 {
		return policy.Decision{Action: policy.ActionAllow}, nil
	}
	return r.agent.opts.Policy.Evaluate(ctx, policy.Input{
		Kind:        kind,
		ToolName:    name,
		Args:        args,
		UserID:      r.in.UserID,
		InterruptOn: r.interruptOn,
	})
}

// checkpoint raises the synthesis checkpoint when the policy asks for it and
// reports whether research should continue.
func (r *run) checkpoint(ctx context.Context, draft string) (bool, string, error) {
	decision, err := r.evaluate(ctx, policy.KindCheckpoint, CheckpointSynthesis, nil)
	if err != nil {
		return false, "", err
	}
	if !decision.RequiresApproval() {
		return false, "", nil
	}
	res := r.requestApproval(ctx, "checkpoint_"+uuid.NewString()[:8], CheckpointSynthesis,
		map[string]any{"draft": draft}, decision.AllowedDecisions)
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	return res.Decision == DecisionContinueResearch, res.Reason, nil
}

// requestApproval opens an approval, announces it and waits for the decision.
// Any failure counts as a rejection.
func (r *run) requestApproval(ctx context.Context, toolCallID, toolName string, args map[string]any, allowed []string) ApprovalResult {
	approver := r.agent.opts.Approver
	if approver == nil {
		log.Warnf("no approver configured, rejecting %s", toolName)
		return ApprovalResult{Decision: DecisionReject, Reason: "no approver configured"}
	}

	approvalID, err := approver.Open(ctx, ApprovalRequest{
		RunID:            r.in.RunID,
		ThreadID:         r.in.ThreadID,
		UserID:           r.in.UserID,
		ToolCallID:       toolCallID,
		ToolName:         toolName,
		Args:             args,
		AllowedDecisions: allowed,
	})
	if err != nil {
		log.Errorf("failed to open approval for %s: %v", toolName, err)
		return ApprovalResult{Decision: DecisionReject, Reason: err.Error()}
	}

	interrupt := &Interrupt{
		ApprovalID:       approvalID,
		ToolCallID:       toolCallID,
		ToolName:         toolName,
		Args:             args,
		AllowedDecisions: allowed,
	}
	if err := r.emit(ctx, Event{Tag: TagInterrupt, Name: toolName, Interrupt: interrupt}); err != nil {
		cancelApproval(ctx, approver, approvalID, err)
		return ApprovalResult{Decision: DecisionReject, Reason: err.Error()}
	}

	res, err := approver.Wait(ctx, approvalID)
	if err != nil {
		cancelApproval(ctx, approver, approvalID, err)
		return ApprovalResult{Decision: DecisionReject, Reason: err.Error()}
	}
	return res
}

const approvalCancelTimeout = 2 * time.Second

// cancelApproval withdraws an approval nobody waits for anymore. It runs
// detached from ctx, which is usually already done.
func cancelApproval(ctx context.Context, approver Approver, approvalID string, cause error) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), approvalCancelTimeout)
	defer cancel()
	if err := approver.Cancel(cancelCtx, approvalID, cause.Error()); err != nil {
		log.Warnf("failed to cancel approval %s: %v", approvalID, err)
	}
}

func continueResearchMessage(reason string) string {
	msg := "Continue researching before writing the final report."
	if reason = strings.TrimSpace(reason); reason != "" {
		msg += " Reviewer notes: " + reason
	}
	return msg
}

func decodeArgs(s string) map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(s) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return map[string]any{"raw": s}
	}
	return out
}

func hasCall(calls []llm.ToolCall, name string) bool {
	for _, c := range calls {
		if c.Name == name {
			return true
		}
	}
	return false
}

func newMessageID() string {
	return "msg_" + uuid.NewString()
}
