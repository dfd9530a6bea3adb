package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := newStore(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func newStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT,
			api_key TEXT UNIQUE,
			rate_limit_tier TEXT NOT NULL DEFAULT 'FREE',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			state TEXT NOT NULL DEFAULT '{}',
			messages TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			title TEXT NOT NULL,
			markdown TEXT NOT NULL,
			json_data TEXT NOT NULL DEFAULT '{}',
			sources TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_session ON reports(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS usage_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			tokens INTEGER,
			cost REAL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_user_created ON usage_logs(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			session_id TEXT,
			user_id TEXT,
			status TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			approval_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			tool_call_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			args TEXT,
			allowed_decisions TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'PENDING',
			decision TEXT,
			reason TEXT,
			decided_by TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_approvals_status_created ON approvals(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Databases created before users carried a display name.
	return s.ensureColumn("users", "name", "ALTER TABLE users ADD COLUMN name TEXT")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user. Empty ID, tier and timestamps are filled in.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.RateLimitTier == "" {
		user.RateLimitTier = domain.RateLimitTierFree
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.UpdatedAt = user.CreatedAt
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, api_key, rate_limit_tier, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, nullString(user.Name), nullString(user.APIKey), user.RateLimitTier, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, name, api_key, rate_limit_tier, created_at, updated_at`

func (s *SQLiteStore) getUserWhere(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	var name, apiKey sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`, arg).
		Scan(&u.ID, &u.Email, &name, &apiKey, &u.RateLimitTier, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Name = name.String
	u.APIKey = apiKey.String
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.getUserWhere(ctx, "id", userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUserWhere(ctx, "email", email)
}

// GetUserByAPIKey retrieves the user owning apiKey.
func (s *SQLiteStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	if apiKey == "" {
		return nil, nil
	}
	return s.getUserWhere(ctx, "api_key", apiKey)
}

// DeleteUser removes a user together with their sessions and usage rows.
func (s *SQLiteStore) DeleteUser(ctx context.Context, userID string) (bool, error) {
	return s.deleteWhere(ctx, `DELETE FROM users WHERE id = ?`, userID)
}

// CreateSession creates a new pending session for userID.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID string, title *string) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Status:    domain.SessionStatusPending,
		State:     json.RawMessage(`{}`),
		Messages:  json.RawMessage(`[]`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	var titleVal sql.NullString
	if title != nil {
		titleVal = sql.NullString{String: *title, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, title, status, state, messages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, titleVal, session.Status, string(session.State), string(session.Messages), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

const sessionColumns = `id, user_id, title, status, state, messages, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var sess domain.Session
	var title sql.NullString
	var state, messages string
	if err := row.Scan(&sess.ID, &sess.UserID, &title, &sess.Status, &state, &messages, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if title.Valid {
		sess.Title = &title.String
	}
	sess.State = json.RawMessage(state)
	sess.Messages = json.RawMessage(messages)
	return &sess, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// ListUserSessions lists the sessions of a user, newest first. An empty
// status lists every session.
func (s *SQLiteStore) ListUserSessions(ctx context.Context, userID string, status domain.SessionStatus) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// UpdateSessionState replaces the stored agent state and message history.
func (s *SQLiteStore) UpdateSessionState(ctx context.Context, sessionID string, state, messages json.RawMessage) error {
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}
	if len(messages) == 0 {
		messages = json.RawMessage(`[]`)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, messages = ?, updated_at = ? WHERE id = ?`,
		string(state), string(messages), s.now(), sessionID)
	return err
}

// UpdateSessionStatus updates the status of a session.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, s.now(), sessionID)
	return err
}

// DeleteSession removes a session and its reports.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return s.deleteWhere(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
}

// CreateReport stores a report for a session.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *domain.Report) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.now()
	}
	report.CreatedAt = report.CreatedAt.UTC()
	if report.JSONData == nil {
		report.JSONData = map[string]any{}
	}
	if report.Sources == nil {
		report.Sources = []map[string]any{}
	}
	jsonData, err := json.Marshal(report.JSONData)
	if err != nil {
		return fmt.Errorf("failed to marshal report data: %w", err)
	}
	sources, err := json.Marshal(report.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal report sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, session_id, title, markdown, json_data, sources, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.SessionID, report.Title, report.Markdown, string(jsonData), string(sources), report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

const reportColumns = `id, session_id, title, markdown, json_data, sources, created_at`

func scanReport(row scanner) (*domain.Report, error) {
	var r domain.Report
	var jsonData, sources string
	if err := row.Scan(&r.ID, &r.SessionID, &r.Title, &r.Markdown, &jsonData, &sources, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(jsonData), &r.JSONData); err != nil {
		return nil, fmt.Errorf("failed to decode report data: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode report sources: %w", err)
	}
	return &r, nil
}

// GetReport retrieves a report by ID.
func (s *SQLiteStore) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, reportID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// ListSessionReports lists the reports of a session, newest first.
func (s *SQLiteStore) ListSessionReports(ctx context.Context, sessionID string) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE session_id = ? ORDER BY created_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []domain.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

// DeleteReport removes a report.
func (s *SQLiteStore) DeleteReport(ctx context.Context, reportID string) (bool, error) {
	return s.deleteWhere(ctx, `DELETE FROM reports WHERE id = ?`, reportID)
}

// CreateUsageLog appends a usage row for userID.
func (s *SQLiteStore) CreateUsageLog(ctx context.Context, userID, action string, tokens *int, cost *float64) (*domain.UsageLog, error) {
	entry := &domain.UsageLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Tokens:    tokens,
		Cost:      cost,
		CreatedAt: s.now(),
	}
	var tokensVal sql.NullInt64
	if tokens != nil {
		tokensVal = sql.NullInt64{Int64: int64(*tokens), Valid: true}
	}
	var costVal sql.NullFloat64
	if cost != nil {
		costVal = sql.NullFloat64{Float64: *cost, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_logs (id, user_id, action, tokens, cost, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, tokensVal, costVal, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create usage log: %w", err)
	}
	return entry, nil
}

// CountUsageSince counts usage rows of userID created at or after since.
func (s *SQLiteStore) CountUsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_logs WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CreateRun creates a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	run.StartedAt = run.StartedAt.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, thread_id, session_id, user_id, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ThreadID, nullString(run.SessionID), nullString(run.UserID), run.Status, run.StartedAt)
	return err
}

const runColumns = `run_id, thread_id, session_id, user_id, status, started_at, ended_at, error`

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var sessionID, userID, errData sql.NullString
	var endedAt sql.NullTime
	if err := row.Scan(&run.RunID, &run.ThreadID, &sessionID, &userID, &run.Status, &run.StartedAt, &endedAt, &errData); err != nil {
		return nil, err
	}
	run.SessionID = sessionID.String
	run.UserID = userID.String
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if errData.Valid {
		run.Error = json.RawMessage(errData.String)
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// UpdateRunCompleted updates a run to completed state.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, status domain.RunStatus, errData []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, ended_at = ?, error = ? WHERE run_id = ?`,
		status, s.now(), nullStringBytes(errData), runID)
	return err
}

// ListSessionRuns lists the runs recorded for a session, newest first.
func (s *SQLiteStore) ListSessionRuns(ctx context.Context, sessionID string) ([]domain.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE session_id = ? ORDER BY started_at DESC, rowid DESC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// GetEvents retrieves events for a run in emission order.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, run_id, ts, type, payload FROM events WHERE run_id = ?`
	args := []any{runID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.RunID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CreateApproval creates a new approval.
func (s *SQLiteStore) CreateApproval(ctx context.Context, approval *domain.Approval) error {
	if approval.Status == "" {
		approval.Status = domain.ApprovalStatusPending
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = s.now()
	}
	approval.CreatedAt = approval.CreatedAt.UTC()
	allowed, err := json.Marshal(approval.AllowedDecisions)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed decisions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO approvals (approval_id, run_id, tool_call_id, tool_name, args, allowed_decisions, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		approval.ApprovalID, approval.RunID, approval.ToolCallID, approval.ToolName, nullStringBytes(approval.Args), string(allowed), approval.Status, approval.CreatedAt)
	return err
}

const approvalColumns = `approval_id, run_id, tool_call_id, tool_name, args, allowed_decisions, status, decision, reason, decided_by, created_at, decided_at`

func scanApproval(row scanner) (*domain.Approval, error) {
	var ap domain.Approval
	var args, decision, reason, decidedBy sql.NullString
	var allowed string
	var decidedAt sql.NullTime
	if err := row.Scan(&ap.ApprovalID, &ap.RunID, &ap.ToolCallID, &ap.ToolName, &args, &allowed, &ap.Status,
		&decision, &reason, &decidedBy, &ap.CreatedAt, &decidedAt); err != nil {
		return nil, err
	}
	if args.Valid {
		ap.Args = json.RawMessage(args.String)
	}
	if err := json.Unmarshal([]byte(allowed), &ap.AllowedDecisions); err != nil {
		return nil, fmt.Errorf("failed to decode allowed decisions: %w", err)
	}
	ap.Decision = decision.String
	ap.Reason = reason.String
	ap.DecidedBy = decidedBy.String
	if decidedAt.Valid {
		ap.DecidedAt = &decidedAt.Time
	}
	return &ap, nil
}

// GetApproval retrieves an approval by ID.
func (s *SQLiteStore) GetApproval(ctx context.Context, approvalID string) (*domain.Approval, error) {
	ap, err := scanApproval(s.db.QueryRowContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE approval_id = ?`, approvalID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ap, err
}

// DecideApproval records a decision on a pending approval. It reports false
// when the approval does not exist or was already decided.
func (s *SQLiteStore) DecideApproval(ctx context.Context, approvalID string, status domain.ApprovalStatus, decision, reason, decidedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, decision = ?, reason = ?, decided_by = ?, decided_at = ? WHERE approval_id = ? AND status = ?`,
		status, nullString(decision), nullString(reason), nullString(decidedBy), s.now(), approvalID, domain.ApprovalStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListExpiredApprovals lists pending approvals created before the cutoff.
func (s *SQLiteStore) ListExpiredApprovals(ctx context.Context, before time.Time, limit int) ([]domain.Approval, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+approvalColumns+` FROM approvals WHERE status = ? AND created_at < ? ORDER BY created_at ASC LIMIT ?`,
		domain.ApprovalStatusPending, before.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Approval
	for rows.Next() {
		ap, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) deleteWhere(ctx context.Context, query string, arg any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
