package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/adapter/llm"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/agent"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

var defaultResearchTags = []string{"research"}

// Research runs a query to completion inside a session and stores the
// answer as a report.
func (s *Service) Research(ctx context.Context, user *domain.User, sessionID string, req domain.ResearchRequest) (*domain.ResearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if err := s.CheckRateLimit(ctx, user); err != nil {
		return nil, err
	}
	session, err := s.ownedSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	s.LogUsage(ctx, user.ID, domain.UsageActionResearchQuery, nil, nil)
	if err := s.store.UpdateSessionStatus(ctx, session.ID, domain.SessionStatusActive); err != nil {
		log.Errorf("failed to mark session %s active: %v", session.ID, err)
	}

	tags := req.Tags
	if len(tags) == 0 {
		tags = defaultResearchTags
	}
	requestID := uuid.NewString()

	var (
		result *agent.RunResult
		runErr error
	)
	tap := func(ev agent.Event, err error) {
		if err != nil {
			runErr = err
			return
		}
		if ev.Tag == agent.TagRunEnd {
			result, _ = ev.Output.(*agent.RunResult)
		}
	}
	for range s.streamRun(ctx, RunRequest{
		ThreadID:  session.ID,
		RunID:     requestID,
		SessionID: session.ID,
		UserID:    user.ID,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: query}},
		HITLMode:  agent.HITLNone,
		Name:      "research",
		Tags:      tags,
	}, tap) {
	}

	if runErr == nil && result == nil {
		runErr = errors.New("run ended without a result")
	}
	if runErr != nil {
		if err := s.store.UpdateSessionStatus(ctx, session.ID, domain.SessionStatusFailed); err != nil {
			log.Errorf("failed to mark session %s failed: %v", session.ID, err)
		}
		return nil, fmt.Errorf("research failed: %w", runErr)
	}

	toolCalls := summarizeToolCalls(result.ToolCalls())
	report := &domain.Report{
		SessionID: session.ID,
		Title:     query,
		Markdown:  result.Response,
		JSONData:  map[string]any{"tool_calls": toolCalls, "request_id": requestID},
		Sources:   ExtractSources(result.Response),
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	s.saveConversation(ctx, session.ID, result)

	return &domain.ResearchResponse{
		RequestID: requestID,
		SessionID: session.ID,
		Query:     query,
		Response:  result.Response,
		ToolCalls: toolCalls,
	}, nil
}

func summarizeToolCalls(calls []llm.ToolCall) []domain.ToolCallSummary {
	out := make([]domain.ToolCallSummary, 0, len(calls))
	for _, tc := range calls {
		args := map[string]any{}
		if tc.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				args = map[string]any{"raw": tc.Arguments}
			}
		}
		out = append(out, domain.ToolCallSummary{Name: tc.Name, Args: args})
	}
	return out
}

// saveConversation keeps the run's messages and plan as the session state.
func (s *Service) saveConversation(ctx context.Context, sessionID string, result *agent.RunResult) {
	state, err := json.Marshal(map[string]any{"todos": result.Todos, "usage": result.Usage})
	if err != nil {
		log.Errorf("failed to encode session state: %v", err)
		return
	}
	messages, err := json.Marshal(result.Messages)
	if err != nil {
		log.Errorf("failed to encode session messages: %v", err)
		return
	}
	if err := s.store.UpdateSessionState(ctx, sessionID, state, messages); err != nil {
		log.Errorf("failed to save session %s state: %v", sessionID, err)
	}
}
