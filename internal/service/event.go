package service

import (
	"context"
	"encoding/json"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/google/uuid"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// recordEvent journals an outbound event and publishes it to the watchers
// of threadID. Failures are logged and never interrupt the run.
func (s *Service) recordEvent(ctx context.Context, runID, threadID string, ev aguievents.Event) {
	payload, err := ev.ToJSON()
	if err != nil {
		log.Errorf("failed to encode %s event of run %s: %v", ev.Type(), runID, err)
		return
	}

	event := &domain.Event{
		EventID: "evt_" + uuid.New().String()[:8],
		RunID:   runID,
		Ts:      s.now().UnixMilli(),
		Type:    string(ev.Type()),
		Payload: json.RawMessage(payload),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		log.Errorf("failed to record %s event of run %s: %v", event.Type, runID, err)
	}
	if s.publisher != nil && threadID != "" {
		s.publisher.Broadcast(threadID, payload)
	}
}

// watchedThread returns the thread whose watchers may see the run, or ""
// when the run is not published. Watchers only follow sessions they own,
// so a run reaches them only when its user owns the session.
func (s *Service) watchedThread(ctx context.Context, req RunRequest) string {
	if s.publisher == nil || req.UserID == "" || req.ThreadID == "" {
		return ""
	}
	session, err := s.store.GetSession(ctx, req.ThreadID)
	if err != nil {
		log.Warnf("failed to look up session %s of run %s: %v", req.ThreadID, req.RunID, err)
		return ""
	}
	if session == nil || session.UserID != req.UserID {
		return ""
	}
	return req.ThreadID
}

func (s *Service) startRun(ctx context.Context, req RunRequest) {
	run := &domain.Run{
		RunID:     req.RunID,
		ThreadID:  req.ThreadID,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Status:    domain.RunStatusRunning,
		StartedAt: s.now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		log.Errorf("failed to create run %s: %v", req.RunID, err)
	}
}

func (s *Service) finishRun(ctx context.Context, runID string, status domain.RunStatus, errData []byte) {
	if err := s.store.UpdateRunCompleted(ctx, runID, status, errData); err != nil {
		log.Errorf("failed to complete run %s: %v", runID, err)
	}
}
