// Package store persists users, sessions, reports, usage and the run journal.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)

	// Session operations
	CreateSession(ctx context.Context, userID string, title *string) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListUserSessions(ctx context.Context, userID string, status domain.SessionStatus) ([]domain.Session, error)
	UpdateSessionState(ctx context.Context, sessionID string, state, messages json.RawMessage) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// Report operations
	CreateReport(ctx context.Context, report *domain.Report) error
	GetReport(ctx context.Context, reportID string) (*domain.Report, error)
	ListSessionReports(ctx context.Context, sessionID string) ([]domain.Report, error)
	DeleteReport(ctx context.Context, reportID string) (bool, error)

	// Usage operations
	CreateUsageLog(ctx context.Context, userID, action string, tokens *int, cost *float64) (*domain.UsageLog, error)
	CountUsageSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, errData []byte) error
	ListSessionRuns(ctx context.Context, sessionID string) ([]domain.Run, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error)

	// Approval operations
	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error)
	DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, decision, reason, decidedBy string) (bool, error)
	ListExpiredApprovals(ctx context.Context, before time.Time, limit int) ([]domain.Approval, error)

	Close() error
}
