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

// DocumentJobRepository implements port.DocumentJobRepository on SQLite.
type DocumentJobRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentJobRepository creates a new document job repository
func NewDocumentJobRepository(db *sql.DB, logger *zap.Logger) port.DocumentJobRepository {
	return &DocumentJobRepository{
		db:     db,
		logger: logger,
	}
}

// Enqueue inserts a job. A duplicate (session, form type, data version) is a
// silent no-op, so re-running completion enqueues nothing new.
func (r *DocumentJobRepository) Enqueue(ctx context.Context, job *entity.DocumentJob) error {
	query := `
		INSERT INTO document_jobs (
			session_id, employee_id, form_type, data_version,
			status, attempts, next_attempt_at, last_error, output_path,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, form_type, data_version) DO NOTHING
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		job.SessionID,
		job.EmployeeID,
		job.FormType,
		job.DataVersion,
		job.Status,
		job.Attempts,
		job.NextAttemptAt,
		job.LastError,
		job.OutputPath,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue document job",
			zap.String("session_id", job.SessionID),
			zap.String("form_type", job.FormType),
			zap.Error(err))
		return fmt.Errorf("failed to enqueue document job: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil && id > 0 {
		job.ID = id
	}

	return nil
}

// GetDue returns pending jobs whose next attempt time has arrived
func (r *DocumentJobRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.DocumentJob, error) {
	query := `
		SELECT id, session_id, employee_id, form_type, data_version,
			status, attempts, next_attempt_at, last_error, output_path,
			created_at, updated_at
		FROM document_jobs
		WHERE status = ? AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC
		LIMIT ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, entity.JobStatusPending, now, limit)
	if err != nil {
		r.logger.Error("Failed to get due document jobs", zap.Error(err))
		return nil, fmt.Errorf("failed to get due document jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.DocumentJob
	for rows.Next() {
		var job entity.DocumentJob
		var lastError, outputPath sql.NullString
		if err := rows.Scan(
			&job.ID,
			&job.SessionID,
			&job.EmployeeID,
			&job.FormType,
			&job.DataVersion,
			&job.Status,
			&job.Attempts,
			&job.NextAttemptAt,
			&lastError,
			&outputPath,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document job: %w", err)
		}
		job.LastError = lastError.String
		job.OutputPath = outputPath.String
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document jobs: %w", err)
	}

	return jobs, nil
}

// MarkProcessing claims a pending job. The status guard keeps two pollers
// from claiming the same job.
func (r *DocumentJobRepository) MarkProcessing(ctx context.Context, id int64) error {
	query := `
		UPDATE document_jobs
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, entity.JobStatusProcessing, id, entity.JobStatusPending)
	if err != nil {
		r.logger.Error("Failed to mark document job processing", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark document job processing: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document job %d is not pending", id)
	}

	return nil
}

// MarkCompleted finishes a job and records where the document landed
func (r *DocumentJobRepository) MarkCompleted(ctx context.Context, id int64, outputPath string) error {
	query := `
		UPDATE document_jobs
		SET status = ?, output_path = ?, last_error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, entity.JobStatusCompleted, outputPath, id)
	if err != nil {
		r.logger.Error("Failed to mark document job completed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark document job completed: %w", err)
	}

	return nil
}

// RecordFailure bumps the attempt counter. Terminal failures move the job to
// FAILED; otherwise the job goes back to PENDING for the next attempt.
func (r *DocumentJobRepository) RecordFailure(ctx context.Context, id int64, errMsg string, nextAttempt time.Time, terminal bool) error {
	status := entity.JobStatusPending
	if terminal {
		status = entity.JobStatusFailed
	}

	query := `
		UPDATE document_jobs
		SET status = ?, attempts = attempts + 1, last_error = ?,
			next_attempt_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query, status, errMsg, nextAttempt, id)
	if err != nil {
		r.logger.Error("Failed to record document job failure", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to record document job failure: %w", err)
	}

	return nil
}

// CountOutstanding returns how many of a session's jobs are not yet completed
func (r *DocumentJobRepository) CountOutstanding(ctx context.Context, sessionID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM document_jobs
		WHERE session_id = ? AND status != ?
	`

	var count int
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, sessionID, entity.JobStatusCompleted).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count outstanding document jobs", zap.String("session_id", sessionID), zap.Error(err))
		return 0, fmt.Errorf("failed to count outstanding document jobs: %w", err)
	}

	return count, nil
}
