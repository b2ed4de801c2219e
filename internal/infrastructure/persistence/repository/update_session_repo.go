package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// UpdateSessionRepository implements port.UpdateSessionRepository on SQLite.
type UpdateSessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUpdateSessionRepository creates a new update session repository
func NewUpdateSessionRepository(db *sql.DB, logger *zap.Logger) port.UpdateSessionRepository {
	return &UpdateSessionRepository{
		db:     db,
		logger: logger,
	}
}

const updateSessionColumns = `
	id, employee_id, form_type, issued_by, token_hash,
	current_data, updated_data, requires_downstream_approval,
	acknowledged_by, acknowledged_at, expires_at, completed_at, created_at
`

// Create inserts a new form update session
func (r *UpdateSessionRepository) Create(ctx context.Context, session *entity.FormUpdateSession) error {
	query := `
		INSERT INTO form_update_sessions (` + updateSessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.EmployeeID,
		session.FormType,
		session.IssuedBy,
		session.TokenHash,
		session.CurrentData,
		session.UpdatedData,
		session.RequiresDownstreamApproval,
		session.AcknowledgedBy,
		session.AcknowledgedAt,
		session.ExpiresAt,
		session.CompletedAt,
		session.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create update session", zap.Error(err))
		return fmt.Errorf("failed to create update session: %w", err)
	}

	return nil
}

// GetByID retrieves an update session by ID
func (r *UpdateSessionRepository) GetByID(ctx context.Context, id string) (*entity.FormUpdateSession, error) {
	query := `SELECT ` + updateSessionColumns + ` FROM form_update_sessions WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetByTokenHash retrieves an update session by its token hash
func (r *UpdateSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*entity.FormUpdateSession, error) {
	query := `SELECT ` + updateSessionColumns + ` FROM form_update_sessions WHERE token_hash = ?`
	return r.getOne(ctx, query, tokenHash)
}

// MarkCompleted consumes the single-use token and stores the submitted data.
// The WHERE clause only matches an unconsumed row, so of two racing
// submissions exactly one observes an affected row.
func (r *UpdateSessionRepository) MarkCompleted(ctx context.Context, id, updatedData string, at time.Time) (bool, error) {
	query := `
		UPDATE form_update_sessions
		SET updated_data = ?, completed_at = ?
		WHERE id = ? AND completed_at IS NULL
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, updatedData, at, id)
	if err != nil {
		r.logger.Error("Failed to mark update session completed", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark update session completed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// Acknowledge records the downstream approval of a completed update
func (r *UpdateSessionRepository) Acknowledge(ctx context.Context, id, actorID string, at time.Time) error {
	query := `
		UPDATE form_update_sessions
		SET acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND completed_at IS NOT NULL AND acknowledged_at IS NULL
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, actorID, at, id)
	if err != nil {
		r.logger.Error("Failed to acknowledge update session", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to acknowledge update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update session %s is not awaiting acknowledgment", id)
	}

	return nil
}

// ListAwaitingApproval returns completed-but-unacknowledged updates for an employee
func (r *UpdateSessionRepository) ListAwaitingApproval(ctx context.Context, employeeID string) ([]*entity.FormUpdateSession, error) {
	query := `
		SELECT ` + updateSessionColumns + `
		FROM form_update_sessions
		WHERE employee_id = ?
			AND completed_at IS NOT NULL
			AND requires_downstream_approval = 1
			AND acknowledged_at IS NULL
		ORDER BY completed_at ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, employeeID)
	if err != nil {
		r.logger.Error("Failed to list updates awaiting approval", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list updates awaiting approval: %w", err)
	}
	defer rows.Close()

	var sessions []*entity.FormUpdateSession
	for rows.Next() {
		session, err := scanUpdateSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan update session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate update sessions: %w", err)
	}

	return sessions, nil
}

func (r *UpdateSessionRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.FormUpdateSession, error) {
	session, err := scanUpdateSession(getExecutor(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get update session", zap.Error(err))
		return nil, fmt.Errorf("failed to get update session: %w", err)
	}
	return session, nil
}

func scanUpdateSession(row rowScanner) (*entity.FormUpdateSession, error) {
	var session entity.FormUpdateSession
	var updatedData, acknowledgedBy sql.NullString
	var acknowledgedAt, completedAt sql.NullTime

	err := row.Scan(
		&session.ID,
		&session.EmployeeID,
		&session.FormType,
		&session.IssuedBy,
		&session.TokenHash,
		&session.CurrentData,
		&updatedData,
		&session.RequiresDownstreamApproval,
		&acknowledgedBy,
		&acknowledgedAt,
		&session.ExpiresAt,
		&completedAt,
		&session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.UpdatedData = updatedData.String
	session.AcknowledgedBy = acknowledgedBy.String
	if acknowledgedAt.Valid {
		session.AcknowledgedAt = &acknowledgedAt.Time
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	return &session, nil
}
