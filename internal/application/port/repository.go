package port

import (
	"context"
	"time"

	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// SessionRepository defines persistence operations for OnboardingSession
type SessionRepository interface {
	Create(ctx context.Context, session *entity.OnboardingSession) error
	GetByID(ctx context.Context, id string) (*entity.OnboardingSession, error)

	// GetActiveByApplicationID returns the non-terminal, non-expired session
	// for an application, nil when none exists.
	GetActiveByApplicationID(ctx context.Context, applicationID string, now time.Time) (*entity.OnboardingSession, error)

	// GetOpenByEmployeeID returns the employee's non-terminal session, nil when none.
	GetOpenByEmployeeID(ctx context.Context, employeeID string) (*entity.OnboardingSession, error)

	// Update persists phase, current step, completions, correction state and flags.
	Update(ctx context.Context, session *entity.OnboardingSession) error

	// ListStale returns sessions past their deadline that are not yet terminal.
	ListStale(ctx context.Context, now time.Time, limit int) ([]*entity.OnboardingSession, error)

	List(ctx context.Context, limit, offset int) ([]*entity.OnboardingSession, error)
}

// FormRecordRepository defines persistence operations for the canonical
// per-employee form records. Upsert touches exactly one (employee, form type)
// row; the update registry's isolation guarantee rests on that.
type FormRecordRepository interface {
	Get(ctx context.Context, employeeID, formType string) (*entity.EmployeeFormRecord, error)
	GetAll(ctx context.Context, employeeID string) ([]*entity.EmployeeFormRecord, error)
	Upsert(ctx context.Context, record *entity.EmployeeFormRecord) error
	SetPendingApproval(ctx context.Context, employeeID, formType string, pending bool) error
}

// UpdateSessionRepository defines persistence operations for FormUpdateSession
type UpdateSessionRepository interface {
	Create(ctx context.Context, session *entity.FormUpdateSession) error
	GetByID(ctx context.Context, id string) (*entity.FormUpdateSession, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*entity.FormUpdateSession, error)

	// MarkCompleted consumes the single-use token and stores the submitted
	// data. Returns false when the token was already consumed, so two racing
	// submissions resolve to exactly one winner.
	MarkCompleted(ctx context.Context, id, updatedData string, at time.Time) (bool, error)

	// Acknowledge records the downstream approval of a completed update.
	Acknowledge(ctx context.Context, id, actorID string, at time.Time) error

	// ListAwaitingApproval returns completed-but-unacknowledged updates for an employee.
	ListAwaitingApproval(ctx context.Context, employeeID string) ([]*entity.FormUpdateSession, error)
}

// AuditRepository is the append-only audit log. Entries are never updated or
// deleted; Append is safe for concurrent writers.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]*entity.AuditEntry, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*entity.AuditEntry, error)
}

// DocumentJobRepository defines persistence operations for DocumentJob
type DocumentJobRepository interface {
	// Enqueue inserts a job; a duplicate (session, form type, data version)
	// is a silent no-op.
	Enqueue(ctx context.Context, job *entity.DocumentJob) error

	// GetDue returns pending jobs whose next attempt time has arrived.
	GetDue(ctx context.Context, now time.Time, limit int) ([]*entity.DocumentJob, error)

	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, outputPath string) error

	// RecordFailure bumps the attempt counter; terminal failures move the
	// job to FAILED, otherwise the job retries at nextAttempt.
	RecordFailure(ctx context.Context, id int64, errMsg string, nextAttempt time.Time, terminal bool) error

	// CountOutstanding returns how many of a session's jobs are not yet completed.
	CountOutstanding(ctx context.Context, sessionID string) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
