package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestlinehotels/onboarding/internal/application/dispatcher"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/event"
	"github.com/crestlinehotels/onboarding/internal/domain/onboarding"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// UpdateService manages standalone single-form update sessions: HR mints a
// time-limited single-use token scoped to one form type, the employee submits
// through it, and the change merges into the canonical record through the
// same write path the orchestrator uses.
type UpdateService interface {
	GenerateUpdateLink(ctx context.Context, employeeID, formType, requestedBy string) (string, *entity.FormUpdateSession, error)
	ValidateUpdateToken(ctx context.Context, token string) (*entity.FormUpdateSession, error)
	SubmitUpdate(ctx context.Context, token string, newData map[string]interface{}, signature string) (*entity.EmployeeFormRecord, error)
	AcknowledgeUpdate(ctx context.Context, updateID, actorID, actorRole string) error
}

// UpdateServiceConfig holds token TTLs.
type UpdateServiceConfig struct {
	// DefaultTokenTTL applies when no per-form TTL is configured.
	DefaultTokenTTL time.Duration

	// TokenTTLByForm overrides the TTL per form type.
	TokenTTLByForm map[string]time.Duration
}

type updateServiceImpl struct {
	registry   *Registry
	records    port.FormRecordRepository
	updates    port.UpdateSessionRepository
	audit      port.AuditRepository
	txManager  port.TransactionManager
	dispatcher dispatcher.Dispatcher
	logger     Logger
	config     UpdateServiceConfig

	now func() time.Time
}

// UpdateServiceOption configures the update service
type UpdateServiceOption func(*updateServiceImpl)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) UpdateServiceOption {
	return func(s *updateServiceImpl) {
		s.now = now
	}
}

// NewUpdateService creates a new UpdateService
func NewUpdateService(
	reg *Registry,
	records port.FormRecordRepository,
	updates port.UpdateSessionRepository,
	audit port.AuditRepository,
	txManager port.TransactionManager,
	d dispatcher.Dispatcher,
	config UpdateServiceConfig,
	logger Logger,
	opts ...UpdateServiceOption,
) UpdateService {
	if config.DefaultTokenTTL <= 0 {
		config.DefaultTokenTTL = 72 * time.Hour
	}

	s := &updateServiceImpl{
		registry:   reg,
		records:    records,
		updates:    updates,
		audit:      audit,
		txManager:  txManager,
		dispatcher: d,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GenerateUpdateLink mints a single-use token scoped to exactly one form type.
func (s *updateServiceImpl) GenerateUpdateLink(ctx context.Context, employeeID, formType, requestedBy string) (string, *entity.FormUpdateSession, error) {
	def, err := s.registry.Get(formType)
	if err != nil {
		return "", nil, err
	}
	if !def.Updatable {
		return "", nil, &onboarding.FormNotUpdatableError{FormType: formType}
	}

	// Cannot update a form the employee never completed.
	record, err := s.records.Get(ctx, employeeID, formType)
	if err != nil {
		return "", nil, fmt.Errorf("load form record: %w", err)
	}
	if record == nil || record.Data == "" {
		return "", nil, &onboarding.UnknownEmployeeError{EmployeeID: employeeID, FormType: formType}
	}

	token, err := newToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	session := &entity.FormUpdateSession{
		ID:                         uuid.NewString(),
		EmployeeID:                 employeeID,
		FormType:                   formType,
		IssuedBy:                   requestedBy,
		TokenHash:                  hashToken(token),
		CurrentData:                record.Data,
		RequiresDownstreamApproval: def.RequiresDownstreamApproval,
		ExpiresAt:                  now.Add(s.tokenTTL(formType)),
		CreatedAt:                  now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.updates.Create(txCtx, session); err != nil {
			return fmt.Errorf("create update session: %w", err)
		}
		return s.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    requestedBy,
			ActorRole:  entity.RoleHR,
			Action:     entity.ActionUpdateLinkIssued,
			TargetType: entity.TargetUpdateSession,
			TargetID:   session.ID,
			Details:    fmt.Sprintf(`{"employee_id":%q,"form_type":%q}`, employeeID, formType),
			Timestamp:  now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to issue update link", "error", err, "employee_id", employeeID, "form_type", formType)
		return "", nil, err
	}

	s.logger.Info("Update link issued",
		"update_id", session.ID,
		"employee_id", employeeID,
		"form_type", formType,
		"expires_at", session.ExpiresAt)

	return token, session, nil
}

// ValidateUpdateToken resolves a raw token to its session, distinguishing
// expired from already-used. Both are terminal.
func (s *updateServiceImpl) ValidateUpdateToken(ctx context.Context, token string) (*entity.FormUpdateSession, error) {
	session, err := s.updates.GetByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if session == nil {
		return nil, onboarding.ErrTokenNotFound
	}
	if session.IsUsed() {
		return nil, &onboarding.TokenAlreadyUsedError{UsedAt: *session.CompletedAt}
	}
	if session.IsExpired(s.now()) {
		return nil, &onboarding.TokenExpiredError{ExpiredAt: session.ExpiresAt}
	}
	return session, nil
}

// SubmitUpdate validates and merges a standalone update. Only the fields of
// the session's own form type are touched; every other form record on the
// employee is provably left alone.
func (s *updateServiceImpl) SubmitUpdate(ctx context.Context, token string, newData map[string]interface{}, signature string) (*entity.EmployeeFormRecord, error) {
	session, err := s.ValidateUpdateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	def, err := s.registry.Get(session.FormType)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Validate(session.FormType, newData); err != nil {
		return nil, err
	}
	if def.RequiresSignature && signature == "" {
		return nil, &onboarding.ValidationError{FormType: session.FormType, Fields: []string{"signature"}}
	}

	payload, err := json.Marshal(newData)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	now := s.now()
	var merged *entity.EmployeeFormRecord

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Consume the token first; a concurrent submission loses here.
		consumed, err := s.updates.MarkCompleted(txCtx, session.ID, string(payload), now)
		if err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		if !consumed {
			return &onboarding.TokenAlreadyUsedError{UsedAt: now}
		}

		current, err := s.records.Get(txCtx, session.EmployeeID, session.FormType)
		if err != nil {
			return fmt.Errorf("load form record: %w", err)
		}

		version := 1
		if current != nil {
			version = current.Version + 1
		}

		merged = &entity.EmployeeFormRecord{
			EmployeeID:      session.EmployeeID,
			FormType:        session.FormType,
			Data:            string(payload),
			Signature:       signature,
			Version:         version,
			PendingApproval: def.RequiresDownstreamApproval,
			Source:          "update:" + session.ID,
			CompletedAt:     now,
			UpdatedAt:       now,
		}
		if err := s.records.Upsert(txCtx, merged); err != nil {
			return fmt.Errorf("merge form record: %w", err)
		}

		// One audit entry per change, tagged with the update session, not
		// any onboarding session.
		return s.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    session.EmployeeID,
			ActorRole:  entity.RoleEmployee,
			Action:     entity.ActionFormUpdated,
			TargetType: entity.TargetUpdateSession,
			TargetID:   session.ID,
			Details: fmt.Sprintf(`{"employee_id":%q,"form_type":%q,"version":%d,"pending_approval":%t}`,
				session.EmployeeID, session.FormType, version, def.RequiresDownstreamApproval),
			Timestamp: now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to submit update", "error", err, "update_id", session.ID)
		return nil, err
	}

	s.logger.Info("Form update merged",
		"update_id", session.ID,
		"employee_id", session.EmployeeID,
		"form_type", session.FormType,
		"version", merged.Version,
		"pending_approval", merged.PendingApproval)

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, event.NewEvent(
			event.TypeFormUpdateCompleted,
			"",
			session.EmployeeID,
			map[string]interface{}{
				"update_id":        session.ID,
				"form_type":        session.FormType,
				"pending_approval": merged.PendingApproval,
			},
		))
	}

	return merged, nil
}

// AcknowledgeUpdate records the downstream approval that makes a pending
// payroll/tax-sensitive change authoritative.
func (s *updateServiceImpl) AcknowledgeUpdate(ctx context.Context, updateID, actorID, actorRole string) error {
	if actorRole != entity.RoleManager && actorRole != entity.RoleHR {
		return onboarding.ErrPermissionDenied
	}

	session, err := s.updates.GetByID(ctx, updateID)
	if err != nil {
		return fmt.Errorf("load update session: %w", err)
	}
	if session == nil {
		return onboarding.ErrTokenNotFound
	}
	if !session.AwaitingApproval() {
		return fmt.Errorf("update %s is not awaiting approval", updateID)
	}

	now := s.now()
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.updates.Acknowledge(txCtx, updateID, actorID, now); err != nil {
			return fmt.Errorf("acknowledge update: %w", err)
		}
		if err := s.records.SetPendingApproval(txCtx, session.EmployeeID, session.FormType, false); err != nil {
			return fmt.Errorf("clear pending flag: %w", err)
		}
		return s.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    actorID,
			ActorRole:  actorRole,
			Action:     entity.ActionUpdateAcknowledged,
			TargetType: entity.TargetUpdateSession,
			TargetID:   updateID,
			Timestamp:  now,
		})
	})
	if err != nil {
		s.logger.Error("Failed to acknowledge update", "error", err, "update_id", updateID)
		return err
	}

	s.logger.Info("Form update acknowledged", "update_id", updateID, "actor_id", actorID)
	return nil
}

func (s *updateServiceImpl) tokenTTL(formType string) time.Duration {
	if ttl, ok := s.config.TokenTTLByForm[formType]; ok && ttl > 0 {
		return ttl
	}
	return s.config.DefaultTokenTTL
}

// newToken returns a cryptographically unguessable 256-bit token.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
