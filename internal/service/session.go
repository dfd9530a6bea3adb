package service

import (
	"context"
	"fmt"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// CreateSession starts a research session for user.
func (s *Service) CreateSession(ctx context.Context, user *domain.User, req domain.CreateSessionRequest) (*domain.SessionResponse, error) {
	if err := s.CheckRateLimit(ctx, user); err != nil {
		return nil, err
	}
	session, err := s.store.CreateSession(ctx, user.ID, req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.LogUsage(ctx, user.ID, domain.UsageActionCreateSession, nil, nil)

	resp := domain.NewSessionResponse(session)
	return &resp, nil
}

// ListSessions returns the sessions of user, newest first. An empty status
// lists all of them.
func (s *Service) ListSessions(ctx context.Context, user *domain.User, status domain.SessionStatus) (*domain.SessionListResponse, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	sessions, err := s.store.ListUserSessions(ctx, user.ID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	resp := &domain.SessionListResponse{Sessions: make([]domain.SessionResponse, 0, len(sessions))}
	for i := range sessions {
		resp.Sessions = append(resp.Sessions, domain.NewSessionResponse(&sessions[i]))
	}
	resp.Total = len(resp.Sessions)
	return resp, nil
}

// GetSession returns a session owned by user.
func (s *Service) GetSession(ctx context.Context, user *domain.User, sessionID string) (*domain.SessionResponse, error) {
	session, err := s.ownedSession(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}
	resp := domain.NewSessionResponse(session)
	return &resp, nil
}

// DeleteSession removes a session owned by user together with its reports.
func (s *Service) DeleteSession(ctx context.Context, user *domain.User, sessionID string) error {
	if _, err := s.ownedSession(ctx, user, sessionID); err != nil {
		return err
	}
	deleted, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// ListReports returns the reports of a session, newest first. withHTML also
// renders each report's markdown.
func (s *Service) ListReports(ctx context.Context, user *domain.User, sessionID string, withHTML bool) ([]domain.ReportResponse, error) {
	if _, err := s.ownedSession(ctx, user, sessionID); err != nil {
		return nil, err
	}
	reports, err := s.store.ListSessionReports(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	out := make([]domain.ReportResponse, 0, len(reports))
	for _, r := range reports {
		resp := domain.ReportResponse{
			ID:        r.ID,
			Title:     r.Title,
			Markdown:  r.Markdown,
			JSONData:  r.JSONData,
			Sources:   r.Sources,
			CreatedAt: r.CreatedAt,
		}
		if withHTML {
			html, err := RenderHTML(r.Markdown)
			if err != nil {
				log.Warnf("report %s: %v", r.ID, err)
			}
			resp.HTML = html
		}
		out = append(out, resp)
	}
	return out, nil
}

// ListRuns returns the run journal of a session owned by user.
func (s *Service) ListRuns(ctx context.Context, user *domain.User, sessionID string) ([]domain.Run, error) {
	if _, err := s.ownedSession(ctx, user, sessionID); err != nil {
		return nil, err
	}
	runs, err := s.store.ListSessionRuns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// RunEvents returns the journaled events of a run owned by user.
func (s *Service) RunEvents(ctx context.Context, user *domain.User, runID string, afterTs int64, limit int) ([]domain.Event, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil || run.UserID != user.ID {
		return nil, ErrRunNotFound
	}
	events, err := s.store.GetEvents(ctx, runID, afterTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}

// ownedSession hides sessions of other users behind ErrSessionNotFound.
func (s *Service) ownedSession(ctx context.Context, user *domain.User, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.UserID != user.ID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}
