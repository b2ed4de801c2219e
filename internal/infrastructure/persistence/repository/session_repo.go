package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// SessionRepository implements port.SessionRepository on SQLite. Required
// forms, completions and the open correction round are stored as JSON
// columns; the session row is always written as a whole.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) port.SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

const sessionColumns = `
	id, application_id, employee_id, manager_id, property_id,
	phase, current_step, required_forms, completions, correction,
	expires_at, documents_archived, needs_attention, created_at, updated_at
`

// Create inserts a new onboarding session
func (r *SessionRepository) Create(ctx context.Context, session *entity.OnboardingSession) error {
	requiredForms, completions, correction, err := encodeSessionJSON(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO onboarding_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.ApplicationID,
		session.EmployeeID,
		session.ManagerID,
		session.PropertyID,
		session.Phase,
		session.CurrentStep,
		requiredForms,
		completions,
		correction,
		session.ExpiresAt,
		session.DocumentsArchived,
		session.NeedsAttention,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create session", zap.Error(err))
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entity.OnboardingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM onboarding_sessions WHERE id = ?`

	session, err := r.scanSession(getExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get session by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// GetActiveByApplicationID returns the non-terminal, non-expired session for
// an application, nil when none exists.
func (r *SessionRepository) GetActiveByApplicationID(ctx context.Context, applicationID string, now time.Time) (*entity.OnboardingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM onboarding_sessions
		WHERE application_id = ?
			AND phase NOT IN (?, ?)
			AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := r.scanSession(getExecutor(ctx, r.db).QueryRowContext(ctx, query,
		applicationID, entity.PhaseComplete, entity.PhaseExpired, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active session", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}

	return session, nil
}

// GetOpenByEmployeeID returns the employee's non-terminal session, nil when none.
func (r *SessionRepository) GetOpenByEmployeeID(ctx context.Context, employeeID string) (*entity.OnboardingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM onboarding_sessions
		WHERE employee_id = ? AND phase NOT IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1
	`

	session, err := r.scanSession(getExecutor(ctx, r.db).QueryRowContext(ctx, query,
		employeeID, entity.PhaseComplete, entity.PhaseExpired))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get open session", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get open session: %w", err)
	}

	return session, nil
}

// Update persists the full mutable state of a session
func (r *SessionRepository) Update(ctx context.Context, session *entity.OnboardingSession) error {
	requiredForms, completions, correction, err := encodeSessionJSON(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE onboarding_sessions
		SET phase = ?, current_step = ?, required_forms = ?, completions = ?,
			correction = ?, expires_at = ?, documents_archived = ?,
			needs_attention = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		session.Phase,
		session.CurrentStep,
		requiredForms,
		completions,
		correction,
		session.ExpiresAt,
		session.DocumentsArchived,
		session.NeedsAttention,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update session", zap.String("id", session.ID), zap.Error(err))
		return fmt.Errorf("failed to update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s not found", session.ID)
	}

	return nil
}

// ListStale returns sessions past their deadline that are not yet terminal
func (r *SessionRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]*entity.OnboardingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM onboarding_sessions
		WHERE expires_at <= ? AND phase NOT IN (?, ?)
		ORDER BY expires_at ASC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		now, entity.PhaseComplete, entity.PhaseExpired, limit)
	if err != nil {
		r.logger.Error("Failed to list stale sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	return r.collectSessions(rows)
}

// List retrieves sessions with pagination
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*entity.OnboardingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM onboarding_sessions
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return r.collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SessionRepository) scanSession(row rowScanner) (*entity.OnboardingSession, error) {
	var session entity.OnboardingSession
	var requiredForms, completions string
	var correction sql.NullString

	err := row.Scan(
		&session.ID,
		&session.ApplicationID,
		&session.EmployeeID,
		&session.ManagerID,
		&session.PropertyID,
		&session.Phase,
		&session.CurrentStep,
		&requiredForms,
		&completions,
		&correction,
		&session.ExpiresAt,
		&session.DocumentsArchived,
		&session.NeedsAttention,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requiredForms), &session.RequiredForms); err != nil {
		return nil, fmt.Errorf("failed to decode required forms: %w", err)
	}
	if err := json.Unmarshal([]byte(completions), &session.Completions); err != nil {
		return nil, fmt.Errorf("failed to decode completions: %w", err)
	}
	if session.Completions == nil {
		session.Completions = make(map[string]*entity.FormCompletion)
	}
	if correction.Valid && correction.String != "" {
		session.Correction = &entity.CorrectionRequest{}
		if err := json.Unmarshal([]byte(correction.String), session.Correction); err != nil {
			return nil, fmt.Errorf("failed to decode correction: %w", err)
		}
	}

	return &session, nil
}

func (r *SessionRepository) collectSessions(rows *sql.Rows) ([]*entity.OnboardingSession, error) {
	var sessions []*entity.OnboardingSession
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func encodeSessionJSON(session *entity.OnboardingSession) (requiredForms, completions string, correction interface{}, err error) {
	rf, err := json.Marshal(session.RequiredForms)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to encode required forms: %w", err)
	}

	comps := session.Completions
	if comps == nil {
		comps = make(map[string]*entity.FormCompletion)
	}
	cm, err := json.Marshal(comps)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to encode completions: %w", err)
	}

	if session.Correction == nil {
		return string(rf), string(cm), nil, nil
	}
	cr, err := json.Marshal(session.Correction)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to encode correction: %w", err)
	}
	return string(rf), string(cm), string(cr), nil
}
