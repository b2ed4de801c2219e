package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/onboarding"
)

// Mock repositories

type mockFormRecordRepo struct {
	getFunc                func(ctx context.Context, employeeID, formType string) (*entity.EmployeeFormRecord, error)
	upsertFunc             func(ctx context.Context, record *entity.EmployeeFormRecord) error
	setPendingApprovalFunc func(ctx context.Context, employeeID, formType string, pending bool) error
}

func (m *mockFormRecordRepo) Get(ctx context.Context, employeeID, formType string) (*entity.EmployeeFormRecord, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, employeeID, formType)
	}
	return nil, nil
}

func (m *mockFormRecordRepo) GetAll(ctx context.Context, employeeID string) ([]*entity.EmployeeFormRecord, error) {
	return nil, nil
}

func (m *mockFormRecordRepo) Upsert(ctx context.Context, record *entity.EmployeeFormRecord) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, record)
	}
	return nil
}

func (m *mockFormRecordRepo) SetPendingApproval(ctx context.Context, employeeID, formType string, pending bool) error {
	if m.setPendingApprovalFunc != nil {
		return m.setPendingApprovalFunc(ctx, employeeID, formType, pending)
	}
	return nil
}

type mockUpdateSessionRepo struct {
	createFunc         func(ctx context.Context, session *entity.FormUpdateSession) error
	getByIDFunc        func(ctx context.Context, id string) (*entity.FormUpdateSession, error)
	getByTokenHashFunc func(ctx context.Context, tokenHash string) (*entity.FormUpdateSession, error)
	markCompletedFunc  func(ctx context.Context, id, updatedData string, at time.Time) (bool, error)
	acknowledgeFunc    func(ctx context.Context, id, actorID string, at time.Time) error
}

func (m *mockUpdateSessionRepo) Create(ctx context.Context, session *entity.FormUpdateSession) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, session)
	}
	return nil
}

func (m *mockUpdateSessionRepo) GetByID(ctx context.Context, id string) (*entity.FormUpdateSession, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUpdateSessionRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*entity.FormUpdateSession, error) {
	if m.getByTokenHashFunc != nil {
		return m.getByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockUpdateSessionRepo) MarkCompleted(ctx context.Context, id, updatedData string, at time.Time) (bool, error) {
	if m.markCompletedFunc != nil {
		return m.markCompletedFunc(ctx, id, updatedData, at)
	}
	return true, nil
}

func (m *mockUpdateSessionRepo) Acknowledge(ctx context.Context, id, actorID string, at time.Time) error {
	if m.acknowledgeFunc != nil {
		return m.acknowledgeFunc(ctx, id, actorID, at)
	}
	return nil
}

func (m *mockUpdateSessionRepo) ListAwaitingApproval(ctx context.Context, employeeID string) ([]*entity.FormUpdateSession, error) {
	return nil, nil
}

type mockAuditRepo struct {
	appendFunc func(ctx context.Context, entry *entity.AuditEntry) error
	entries    []*entity.AuditEntry
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditEntry) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByTarget(ctx context.Context, targetType, targetID string) ([]*entity.AuditEntry, error) {
	return m.entries, nil
}

func (m *mockAuditRepo) ListByEmployee(ctx context.Context, employeeID string) ([]*entity.AuditEntry, error) {
	return m.entries, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

var _ port.FormRecordRepository = (*mockFormRecordRepo)(nil)
var _ port.UpdateSessionRepository = (*mockUpdateSessionRepo)(nil)
var _ port.AuditRepository = (*mockAuditRepo)(nil)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(records *mockFormRecordRepo, updates *mockUpdateSessionRepo, now time.Time) UpdateService {
	return NewUpdateService(
		NewRegistry(nil),
		records,
		updates,
		&mockAuditRepo{},
		&mockTxManager{},
		nil,
		UpdateServiceConfig{
			DefaultTokenTTL: 72 * time.Hour,
			TokenTTLByForm:  map[string]time.Duration{entity.FormDirectDeposit: 24 * time.Hour},
		},
		&mockLogger{},
		WithClock(fixedClock(now)),
	)
}

func TestUpdateService_GenerateUpdateLink(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	existingRecord := func(formType string) *mockFormRecordRepo {
		return &mockFormRecordRepo{
			getFunc: func(ctx context.Context, employeeID, ft string) (*entity.EmployeeFormRecord, error) {
				return &entity.EmployeeFormRecord{
					EmployeeID: employeeID,
					FormType:   ft,
					Data:       `{"filing_status":"single"}`,
					Version:    2,
				}, nil
			},
		}
	}

	t.Run("issues token and stores only its hash", func(t *testing.T) {
		var created *entity.FormUpdateSession
		updates := &mockUpdateSessionRepo{
			createFunc: func(ctx context.Context, session *entity.FormUpdateSession) error {
				created = session
				return nil
			},
		}
		service := newTestService(existingRecord(entity.FormW4), updates, now)

		token, session, err := service.GenerateUpdateLink(context.Background(), "emp-1", entity.FormW4, "hr-001")
		if err != nil {
			t.Fatalf("GenerateUpdateLink() error = %v", err)
		}

		if token == "" {
			t.Fatal("expected a raw token")
		}
		if created == nil {
			t.Fatal("expected update session to be persisted")
		}
		if created.TokenHash == token {
			t.Error("raw token must not be stored")
		}
		if len(created.TokenHash) != 64 {
			t.Errorf("expected sha256 hex hash, got %q", created.TokenHash)
		}
		if !session.RequiresDownstreamApproval {
			t.Error("W4 updates must require downstream approval")
		}
		if want := now.Add(72 * time.Hour); !session.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
		}
		if session.CurrentData != `{"filing_status":"single"}` {
			t.Errorf("CurrentData = %q, want the canonical record snapshot", session.CurrentData)
		}
	})

	t.Run("per-form TTL override applies", func(t *testing.T) {
		service := newTestService(existingRecord(entity.FormDirectDeposit), &mockUpdateSessionRepo{}, now)

		_, session, err := service.GenerateUpdateLink(context.Background(), "emp-1", entity.FormDirectDeposit, "hr-001")
		if err != nil {
			t.Fatalf("GenerateUpdateLink() error = %v", err)
		}
		if want := now.Add(24 * time.Hour); !session.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
		}
	})

	t.Run("rejects non-updatable form", func(t *testing.T) {
		service := newTestService(existingRecord(entity.FormI9Section1), &mockUpdateSessionRepo{}, now)

		_, _, err := service.GenerateUpdateLink(context.Background(), "emp-1", entity.FormI9Section1, "hr-001")

		var notUpdatable *onboarding.FormNotUpdatableError
		if !errors.As(err, &notUpdatable) {
			t.Fatalf("expected FormNotUpdatableError, got %v", err)
		}
	})

	t.Run("rejects employee with no completed record", func(t *testing.T) {
		service := newTestService(&mockFormRecordRepo{}, &mockUpdateSessionRepo{}, now)

		_, _, err := service.GenerateUpdateLink(context.Background(), "emp-unknown", entity.FormW4, "hr-001")

		var unknown *onboarding.UnknownEmployeeError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownEmployeeError, got %v", err)
		}
	})
}

func TestUpdateService_ValidateUpdateToken(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	t.Run("unknown token", func(t *testing.T) {
		service := newTestService(&mockFormRecordRepo{}, &mockUpdateSessionRepo{}, now)

		_, err := service.ValidateUpdateToken(context.Background(), "bogus")
		if !errors.Is(err, onboarding.ErrTokenNotFound) {
			t.Fatalf("expected ErrTokenNotFound, got %v", err)
		}
	})

	t.Run("used token", func(t *testing.T) {
		usedAt := now.Add(-time.Hour)
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return &entity.FormUpdateSession{
					ID:          "upd-1",
					FormType:    entity.FormW4,
					ExpiresAt:   now.Add(time.Hour),
					CompletedAt: &usedAt,
				}, nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		_, err := service.ValidateUpdateToken(context.Background(), "token")
		var used *onboarding.TokenAlreadyUsedError
		if !errors.As(err, &used) {
			t.Fatalf("expected TokenAlreadyUsedError, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return &entity.FormUpdateSession{
					ID:        "upd-1",
					FormType:  entity.FormW4,
					ExpiresAt: now.Add(-time.Minute),
				}, nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		_, err := service.ValidateUpdateToken(context.Background(), "token")
		var expired *onboarding.TokenExpiredError
		if !errors.As(err, &expired) {
			t.Fatalf("expected TokenExpiredError, got %v", err)
		}
	})
}

func validW4Payload() map[string]interface{} {
	return map[string]interface{}{
		"filing_status": "married_filing_jointly",
		"first_name":    "Dana",
		"last_name":     "Okafor",
		"ssn":           "123-45-6789",
		"address":       "12 Elm St",
	}
}

func liveUpdateSession(now time.Time) *entity.FormUpdateSession {
	return &entity.FormUpdateSession{
		ID:                         "upd-1",
		EmployeeID:                 "emp-1",
		FormType:                   entity.FormW4,
		RequiresDownstreamApproval: true,
		CurrentData:                `{"filing_status":"single"}`,
		ExpiresAt:                  now.Add(time.Hour),
	}
}

func TestUpdateService_SubmitUpdate(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	t.Run("merges into the canonical record with a bumped version", func(t *testing.T) {
		var upserted *entity.EmployeeFormRecord
		upsertCalls := 0
		records := &mockFormRecordRepo{
			getFunc: func(ctx context.Context, employeeID, formType string) (*entity.EmployeeFormRecord, error) {
				return &entity.EmployeeFormRecord{
					EmployeeID: employeeID,
					FormType:   formType,
					Data:       `{"filing_status":"single"}`,
					Version:    3,
				}, nil
			},
			upsertFunc: func(ctx context.Context, record *entity.EmployeeFormRecord) error {
				upsertCalls++
				upserted = record
				return nil
			},
		}
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return liveUpdateSession(now), nil
			},
		}
		service := newTestService(records, updates, now)

		merged, err := service.SubmitUpdate(context.Background(), "token", validW4Payload(), "sig")
		if err != nil {
			t.Fatalf("SubmitUpdate() error = %v", err)
		}

		if merged.Version != 4 {
			t.Errorf("Version = %d, want 4", merged.Version)
		}
		if !merged.PendingApproval {
			t.Error("W4 merge must stay pending until acknowledged")
		}
		if merged.Source != "update:upd-1" {
			t.Errorf("Source = %q, want update:upd-1", merged.Source)
		}
		if upsertCalls != 1 {
			t.Errorf("expected exactly one record write, got %d", upsertCalls)
		}
		if upserted.FormType != entity.FormW4 {
			t.Errorf("wrote %s, only the session's own form type may change", upserted.FormType)
		}
	})

	t.Run("requires signature for signed forms", func(t *testing.T) {
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return liveUpdateSession(now), nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		_, err := service.SubmitUpdate(context.Background(), "token", validW4Payload(), "")

		var ve *onboarding.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(ve.Fields) != 1 || ve.Fields[0] != "signature" {
			t.Errorf("Fields = %v, want [signature]", ve.Fields)
		}
	})

	t.Run("rejects invalid payload before touching anything", func(t *testing.T) {
		consumed := false
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return liveUpdateSession(now), nil
			},
			markCompletedFunc: func(ctx context.Context, id, data string, at time.Time) (bool, error) {
				consumed = true
				return true, nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		_, err := service.SubmitUpdate(context.Background(), "token", map[string]interface{}{"filing_status": "single"}, "sig")

		var ve *onboarding.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if consumed {
			t.Error("a rejected payload must not consume the token")
		}
	})

	t.Run("racing submission loses the single-use token", func(t *testing.T) {
		updates := &mockUpdateSessionRepo{
			getByTokenHashFunc: func(ctx context.Context, hash string) (*entity.FormUpdateSession, error) {
				return liveUpdateSession(now), nil
			},
			markCompletedFunc: func(ctx context.Context, id, data string, at time.Time) (bool, error) {
				return false, nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		_, err := service.SubmitUpdate(context.Background(), "token", validW4Payload(), "sig")

		var used *onboarding.TokenAlreadyUsedError
		if !errors.As(err, &used) {
			t.Fatalf("expected TokenAlreadyUsedError, got %v", err)
		}
	})
}

func TestUpdateService_AcknowledgeUpdate(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	completedAt := now.Add(-time.Hour)

	awaiting := func() *mockUpdateSessionRepo {
		return &mockUpdateSessionRepo{
			getByIDFunc: func(ctx context.Context, id string) (*entity.FormUpdateSession, error) {
				return &entity.FormUpdateSession{
					ID:                         id,
					EmployeeID:                 "emp-1",
					FormType:                   entity.FormW4,
					RequiresDownstreamApproval: true,
					CompletedAt:                &completedAt,
					ExpiresAt:                  now.Add(time.Hour),
				}, nil
			},
		}
	}

	t.Run("manager acknowledgment clears the pending flag", func(t *testing.T) {
		var clearedForm string
		var clearedTo bool
		records := &mockFormRecordRepo{
			setPendingApprovalFunc: func(ctx context.Context, employeeID, formType string, pending bool) error {
				clearedForm = formType
				clearedTo = pending
				return nil
			},
		}
		service := newTestService(records, awaiting(), now)

		if err := service.AcknowledgeUpdate(context.Background(), "upd-1", "mgr-001", entity.RoleManager); err != nil {
			t.Fatalf("AcknowledgeUpdate() error = %v", err)
		}
		if clearedForm != entity.FormW4 || clearedTo {
			t.Errorf("expected pending flag cleared on %s, got form=%s pending=%t",
				entity.FormW4, clearedForm, clearedTo)
		}
	})

	t.Run("employee role is denied", func(t *testing.T) {
		service := newTestService(&mockFormRecordRepo{}, awaiting(), now)

		err := service.AcknowledgeUpdate(context.Background(), "upd-1", "emp-1", entity.RoleEmployee)
		if !errors.Is(err, onboarding.ErrPermissionDenied) {
			t.Fatalf("expected ErrPermissionDenied, got %v", err)
		}
	})

	t.Run("update not awaiting approval", func(t *testing.T) {
		updates := &mockUpdateSessionRepo{
			getByIDFunc: func(ctx context.Context, id string) (*entity.FormUpdateSession, error) {
				return &entity.FormUpdateSession{
					ID:                         id,
					FormType:                   entity.FormW4,
					RequiresDownstreamApproval: true,
					ExpiresAt:                  now.Add(time.Hour),
				}, nil
			},
		}
		service := newTestService(&mockFormRecordRepo{}, updates, now)

		if err := service.AcknowledgeUpdate(context.Background(), "upd-1", "hr-001", entity.RoleHR); err == nil {
			t.Fatal("expected error for an update that is not awaiting approval")
		}
	})
}
