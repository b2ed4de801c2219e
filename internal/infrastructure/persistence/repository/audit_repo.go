package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// AuditRepository implements the append-only audit log on SQLite. There is
// deliberately no update or delete path.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			actor_id, actor_role, action, target_type, target_id,
			prior_phase, new_phase, details, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.ActorID,
		entry.ActorRole,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.PriorPhase,
		entry.NewPhase,
		entry.Details,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry", zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByTarget retrieves all entries for one target in insertion order
func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, actor_id, actor_role, action, target_type, target_id,
			prior_phase, new_phase, details, timestamp
		FROM audit_entries
		WHERE target_type = ? AND target_id = ?
		ORDER BY id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, targetType, targetID)
	if err != nil {
		r.logger.Error("Failed to list audit entries",
			zap.String("target_type", targetType),
			zap.String("target_id", targetID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

// ListByEmployee retrieves all entries whose target belongs to an employee.
// Sessions, update sessions and form records all record the employee in
// their details or are reachable via the target ID prefix scheme, so this
// joins through the owning tables.
func (r *AuditRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT a.id, a.actor_id, a.actor_role, a.action, a.target_type, a.target_id,
			a.prior_phase, a.new_phase, a.details, a.timestamp
		FROM audit_entries a
		WHERE (a.target_type = ? AND a.target_id IN (
				SELECT id FROM onboarding_sessions WHERE employee_id = ?))
			OR (a.target_type = ? AND a.target_id IN (
				SELECT id FROM form_update_sessions WHERE employee_id = ?))
		ORDER BY a.id ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query,
		entity.TargetSession, employeeID,
		entity.TargetUpdateSession, employeeID)
	if err != nil {
		r.logger.Error("Failed to list audit entries by employee",
			zap.String("employee_id", employeeID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

func collectAuditEntries(rows *sql.Rows) ([]*entity.AuditEntry, error) {
	var entries []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorID,
			&entry.ActorRole,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&entry.PriorPhase,
			&entry.NewPhase,
			&entry.Details,
			&entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
