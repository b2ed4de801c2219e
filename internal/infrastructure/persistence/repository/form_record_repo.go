package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// FormRecordRepository implements port.FormRecordRepository on SQLite.
// Rows are keyed by (employee_id, form_type); Upsert touches exactly one.
type FormRecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFormRecordRepository creates a new form record repository
func NewFormRecordRepository(db *sql.DB, logger *zap.Logger) port.FormRecordRepository {
	return &FormRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the record for one (employee, form type), nil when absent
func (r *FormRecordRepository) Get(ctx context.Context, employeeID, formType string) (*entity.EmployeeFormRecord, error) {
	query := `
		SELECT employee_id, form_type, data, signature, version,
			pending_approval, source, completed_at, updated_at
		FROM employee_forms
		WHERE employee_id = ? AND form_type = ?
	`

	var record entity.EmployeeFormRecord
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, employeeID, formType).Scan(
		&record.EmployeeID,
		&record.FormType,
		&record.Data,
		&record.Signature,
		&record.Version,
		&record.PendingApproval,
		&record.Source,
		&record.CompletedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get form record",
			zap.String("employee_id", employeeID),
			zap.String("form_type", formType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get form record: %w", err)
	}

	return &record, nil
}

// GetAll retrieves every form record for an employee
func (r *FormRecordRepository) GetAll(ctx context.Context, employeeID string) ([]*entity.EmployeeFormRecord, error) {
	query := `
		SELECT employee_id, form_type, data, signature, version,
			pending_approval, source, completed_at, updated_at
		FROM employee_forms
		WHERE employee_id = ?
		ORDER BY form_type
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, employeeID)
	if err != nil {
		r.logger.Error("Failed to get form records", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get form records: %w", err)
	}
	defer rows.Close()

	var records []*entity.EmployeeFormRecord
	for rows.Next() {
		var record entity.EmployeeFormRecord
		if err := rows.Scan(
			&record.EmployeeID,
			&record.FormType,
			&record.Data,
			&record.Signature,
			&record.Version,
			&record.PendingApproval,
			&record.Source,
			&record.CompletedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan form record: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate form records: %w", err)
	}

	return records, nil
}

// Upsert writes a record, replacing any prior row for the same
// (employee, form type). Rows for other form types are never touched.
func (r *FormRecordRepository) Upsert(ctx context.Context, record *entity.EmployeeFormRecord) error {
	query := `
		INSERT INTO employee_forms (
			employee_id, form_type, data, signature, version,
			pending_approval, source, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, form_type) DO UPDATE SET
			data = excluded.data,
			signature = excluded.signature,
			version = excluded.version,
			pending_approval = excluded.pending_approval,
			source = excluded.source,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		record.EmployeeID,
		record.FormType,
		record.Data,
		record.Signature,
		record.Version,
		record.PendingApproval,
		record.Source,
		record.CompletedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert form record",
			zap.String("employee_id", record.EmployeeID),
			zap.String("form_type", record.FormType),
			zap.Error(err))
		return fmt.Errorf("failed to upsert form record: %w", err)
	}

	return nil
}

// SetPendingApproval flips the pending-approval flag on one record
func (r *FormRecordRepository) SetPendingApproval(ctx context.Context, employeeID, formType string, pending bool) error {
	query := `
		UPDATE employee_forms
		SET pending_approval = ?
		WHERE employee_id = ? AND form_type = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query, pending, employeeID, formType)
	if err != nil {
		r.logger.Error("Failed to set pending approval", zap.Error(err))
		return fmt.Errorf("failed to set pending approval: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("form record %s/%s not found", employeeID, formType)
	}

	return nil
}
