package service

import (
	"context"
	"iter"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agui"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/observe"
)

// RunRequest describes one streamed agent run.
type RunRequest struct {
	ThreadID  string
	RunID     string
	SessionID string
	UserID    string
	Messages  []llm.Message
	HITLMode  agent.HITLMode
	Name      string
	Tags      []string
}

// RunRequestFromInput maps an AG-UI run request. Without
// forwardedProps.hitl_mode the run has no human-in-the-loop interrupts.
func RunRequestFromInput(in *agui.RunAgentInput) RunRequest {
	return RunRequest{
		ThreadID: in.ThreadID,
		RunID:    in.RunID,
		Messages: in.LLMMessages(),
		HITLMode: agent.ParseHITLMode(in.HITLMode()),
		Name:     "copilotkit",
	}
}

// StreamRun runs the agent and yields its AG-UI events. Every event is
// journaled and published to the thread's watchers. When the consumer
// stops early the run is cancelled and drained so that its terminal event
// is still journaled.
func (s *Service) StreamRun(ctx context.Context, req RunRequest) iter.Seq[aguievents.Event] {
	return s.streamRun(ctx, req, nil)
}

// streamRun is StreamRun with an optional tap on the upstream agent events.
func (s *Service) streamRun(ctx context.Context, req RunRequest, tap func(agent.Event, error)) iter.Seq[aguievents.Event] {
	return func(yield func(aguievents.Event) bool) {
		if req.ThreadID == "" {
			req.ThreadID = uuid.NewString()
		}
		if req.RunID == "" {
			req.RunID = uuid.NewString()
		}

		journalCtx := context.WithoutCancel(ctx)
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		runCtx, span := observe.StartRun(runCtx, observe.RunInfo{
			Name:      req.Name,
			UserID:    req.UserID,
			SessionID: req.ThreadID,
			RequestID: req.RunID,
			Tags:      req.Tags,
		})
		defer span.End()

		s.startRun(journalCtx, req)

		upstream := s.agent.Stream(runCtx, agent.RunInput{
			ThreadID: req.ThreadID,
			RunID:    req.RunID,
			UserID:   req.UserID,
			Messages: req.Messages,
			HITLMode: req.HITLMode,
		})
		if tap != nil {
			upstream = tapped(upstream, tap)
		}

		status := domain.RunStatusDone
		var errData []byte
		open := true
		watched := s.watchedThread(journalCtx, req)
		for ev := range s.translator.Run(req.ThreadID, req.RunID, upstream) {
			s.recordEvent(journalCtx, req.RunID, watched, ev)
			if ev.Type() == aguievents.EventTypeRunError {
				status = domain.RunStatusFailed
				errData, _ = ev.ToJSON()
			}
			if open && !yield(ev) {
				open = false
				cancel()
			}
		}
		s.finishRun(journalCtx, req.RunID, status, errData)
	}
}

func tapped(upstream iter.Seq2[agent.Event, error], tap func(agent.Event, error)) iter.Seq2[agent.Event, error] {
	return func(yield func(agent.Event, error) bool) {
		for ev, err := range upstream {
			tap(ev, err)
			if !yield(ev, err) {
				return
			}
		}
	}
}
