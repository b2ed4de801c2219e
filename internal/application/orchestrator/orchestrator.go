// Package orchestrator drives onboarding sessions through the three-phase
// workflow. It is the only component permitted to change a session's phase or
// current step; all gating decisions are delegated to the compliance gate.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestlinehotels/onboarding/internal/application/dispatcher"
	"github.com/crestlinehotels/onboarding/internal/application/port"
	"github.com/crestlinehotels/onboarding/internal/application/registry"
	"github.com/crestlinehotels/onboarding/internal/compliance"
	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/event"
	"github.com/crestlinehotels/onboarding/internal/domain/onboarding"
	domainwf "github.com/crestlinehotels/onboarding/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role string
}

// JobOffer carries the approved-application details a new session is built
// from. Application approval itself happens outside this core.
type JobOffer struct {
	ApplicationID string    `json:"application_id"`
	EmployeeID    string    `json:"employee_id"`
	ManagerID     string    `json:"manager_id"`
	PropertyID    string    `json:"property_id"`
	JobTitle      string    `json:"job_title"`
	WorkState     string    `json:"work_state"`
	StartDate     time.Time `json:"start_date"`
	PayRate       float64   `json:"pay_rate"`
	Supervisor    string    `json:"supervisor"`
}

// Orchestrator owns the onboarding session state machine.
type Orchestrator interface {
	InitiateOnboarding(ctx context.Context, offer JobOffer) (*entity.OnboardingSession, error)
	GetSession(ctx context.Context, sessionID string) (*entity.OnboardingSession, error)
	CompleteStep(ctx context.Context, sessionID, stepFormType string, payload map[string]interface{}, signature string, actor Actor) (*entity.OnboardingSession, error)
	RequestPhaseTransition(ctx context.Context, sessionID, targetPhase string, actor Actor) (*entity.OnboardingSession, error)
	RequestCorrections(ctx context.Context, sessionID string, formTypes []string, reason string, actor Actor) (*entity.OnboardingSession, error)
	ExpireStaleSessions(ctx context.Context) (int, error)
	MarkDocumentsArchived(ctx context.Context, sessionID string) error
	SetNeedsAttention(ctx context.Context, sessionID, reason string) error
}

// Config holds orchestrator tunables.
type Config struct {
	// SessionTTL is how long a session may run before expiring.
	SessionTTL time.Duration

	// StaleBatchSize bounds one expiry sweep.
	StaleBatchSize int
}

type orchestratorImpl struct {
	sessions   port.SessionRepository
	records    port.FormRecordRepository
	updates    port.UpdateSessionRepository
	audit      port.AuditRepository
	jobs       port.DocumentJobRepository
	txManager  port.TransactionManager
	gate       *compliance.Gate
	registry   *registry.Registry
	dispatcher dispatcher.Dispatcher
	logger     Logger
	config     Config

	locks *sessionLocks
	now   func() time.Time
}

// Option configures the orchestrator
type Option func(*orchestratorImpl)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorImpl) {
		o.now = now
	}
}

// New creates a new Orchestrator
func New(
	sessions port.SessionRepository,
	records port.FormRecordRepository,
	updates port.UpdateSessionRepository,
	audit port.AuditRepository,
	jobs port.DocumentJobRepository,
	txManager port.TransactionManager,
	gate *compliance.Gate,
	reg *registry.Registry,
	d dispatcher.Dispatcher,
	config Config,
	logger Logger,
	opts ...Option,
) Orchestrator {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 14 * 24 * time.Hour
	}
	if config.StaleBatchSize <= 0 {
		config.StaleBatchSize = 100
	}

	o := &orchestratorImpl{
		sessions:   sessions,
		records:    records,
		updates:    updates,
		audit:      audit,
		jobs:       jobs,
		txManager:  txManager,
		gate:       gate,
		registry:   reg,
		dispatcher: d,
		logger:     logger,
		config:     config,
		locks:      newSessionLocks(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// transitionRoles names who may request each forward transition.
var transitionRoles = map[[2]domainwf.State][]string{
	{domainwf.StateEmployee, domainwf.StateManager}: {entity.RoleEmployee, entity.RoleSystem},
	{domainwf.StateManager, domainwf.StateHR}:       {entity.RoleManager},
	{domainwf.StateHR, domainwf.StateComplete}:      {entity.RoleHR},
}

// InitiateOnboarding creates a fresh session for an approved application.
func (o *orchestratorImpl) InitiateOnboarding(ctx context.Context, offer JobOffer) (*entity.OnboardingSession, error) {
	now := o.now()

	existing, err := o.sessions.GetActiveByApplicationID(ctx, offer.ApplicationID, now)
	if err != nil {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		return nil, &onboarding.DuplicateSessionError{
			ApplicationID: offer.ApplicationID,
			SessionID:     existing.ID,
		}
	}

	required := o.registry.RequiredForms(offer.WorkState)
	phaseForms := o.registry.PhaseForms(required)
	employeeForms := phaseForms[entity.PhaseEmployee]
	if len(employeeForms) == 0 {
		return nil, fmt.Errorf("no employee-phase forms configured for state %q", offer.WorkState)
	}

	session := &entity.OnboardingSession{
		ID:            uuid.NewString(),
		ApplicationID: offer.ApplicationID,
		EmployeeID:    offer.EmployeeID,
		ManagerID:     offer.ManagerID,
		PropertyID:    offer.PropertyID,
		Phase:         entity.PhaseEmployee,
		CurrentStep:   employeeForms[0],
		RequiredForms: required,
		Completions:   make(map[string]*entity.FormCompletion),
		ExpiresAt:     now.Add(o.config.SessionTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	offerDetails, _ := json.Marshal(offer)

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Create(txCtx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    entity.RoleSystem,
			ActorRole:  entity.RoleSystem,
			Action:     entity.ActionInitiated,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			NewPhase:   entity.PhaseEmployee,
			Details:    string(offerDetails),
			Timestamp:  now,
		})
	})
	if err != nil {
		o.logger.Error("Failed to initiate onboarding", "error", err, "application_id", offer.ApplicationID)
		return nil, err
	}

	o.logger.Info("Onboarding initiated",
		"session_id", session.ID,
		"application_id", offer.ApplicationID,
		"employee_id", offer.EmployeeID,
		"first_step", session.CurrentStep,
		"expires_at", session.ExpiresAt)

	o.dispatchAsync(ctx, event.NewEvent(event.TypeSessionInitiated, session.ID, session.EmployeeID,
		map[string]interface{}{"phase": session.Phase, "current_step": session.CurrentStep}))

	return session, nil
}

// GetSession returns a session by ID.
func (o *orchestratorImpl) GetSession(ctx context.Context, sessionID string) (*entity.OnboardingSession, error) {
	session, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, onboarding.ErrSessionNotFound
	}
	return session, nil
}

// CompleteStep validates and records one form completion, then advances the
// current step within the same phase. It never changes the phase: submitting
// for review is a distinct, explicit transition.
func (o *orchestratorImpl) CompleteStep(ctx context.Context, sessionID, stepFormType string, payload map[string]interface{}, signature string, actor Actor) (*entity.OnboardingSession, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if session.IsExpired(now) || session.Phase == entity.PhaseExpired {
		return nil, &onboarding.SessionExpiredError{SessionID: sessionID, ExpiredAt: session.ExpiresAt}
	}
	if session.Phase != entity.PhaseEmployee && session.Phase != entity.PhaseManager {
		return nil, &onboarding.StepMismatchError{Got: stepFormType}
	}
	if stepFormType != session.CurrentStep {
		return nil, &onboarding.StepMismatchError{Expected: session.CurrentStep, Got: stepFormType}
	}

	if err := o.authorizeStep(session.Phase, actor); err != nil {
		return nil, err
	}

	def, err := o.registry.Get(stepFormType)
	if err != nil {
		return nil, err
	}
	if err := o.registry.Validate(stepFormType, payload); err != nil {
		return nil, err
	}
	if def.RequiresSignature && signature == "" {
		return nil, &onboarding.ValidationError{FormType: stepFormType, Fields: []string{"signature"}}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Re-check expiry right before committing; an expiry sweep may
		// have won the race while validation ran.
		if o.now().After(session.ExpiresAt) {
			return &onboarding.SessionExpiredError{SessionID: sessionID, ExpiredAt: session.ExpiresAt}
		}

		current, err := o.records.Get(txCtx, session.EmployeeID, stepFormType)
		if err != nil {
			return fmt.Errorf("load form record: %w", err)
		}
		version := 1
		if current != nil {
			version = current.Version + 1
		}

		record := &entity.EmployeeFormRecord{
			EmployeeID:  session.EmployeeID,
			FormType:    stepFormType,
			Data:        string(data),
			Signature:   signature,
			Version:     version,
			Source:      "session:" + session.ID,
			CompletedAt: now,
			UpdatedAt:   now,
		}
		if err := o.records.Upsert(txCtx, record); err != nil {
			return fmt.Errorf("store form record: %w", err)
		}

		session.Completions[stepFormType] = &entity.FormCompletion{
			FormType:     stepFormType,
			CompletedAt:  now,
			DataVersion:  version,
			SignatureRef: signature,
		}
		session.CurrentStep = o.nextStep(session)
		session.UpdatedAt = now

		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     entity.ActionStepCompleted,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			Details:    fmt.Sprintf(`{"form_type":%q,"version":%d}`, stepFormType, version),
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Step completed",
		"session_id", session.ID,
		"form_type", stepFormType,
		"next_step", session.CurrentStep)

	o.dispatchAsync(ctx, event.NewEvent(event.TypeStepCompleted, session.ID, session.EmployeeID,
		map[string]interface{}{"form_type": stepFormType, "next_step": session.CurrentStep}))

	return session, nil
}

// RequestPhaseTransition attempts a forward phase transition, gated by the
// compliance rule set. A blocking failure leaves the phase unchanged and
// surfaces the failing rules verbatim.
func (o *orchestratorImpl) RequestPhaseTransition(ctx context.Context, sessionID, targetPhase string, actor Actor) (*entity.OnboardingSession, error) {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if session.IsExpired(now) || session.Phase == entity.PhaseExpired {
		return nil, &onboarding.SessionExpiredError{SessionID: sessionID, ExpiredAt: session.ExpiresAt}
	}

	from := domainwf.State(session.Phase)
	to := domainwf.State(targetPhase)
	trigger, ok := transitionTriggers[[2]domainwf.State{from, to}]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", domainwf.ErrInvalidTransition, from, to)
	}

	if !roleAllowed(transitionRoles[[2]domainwf.State{from, to}], actor.Role) {
		return nil, fmt.Errorf("%w: role %s cannot request %s -> %s",
			onboarding.ErrPermissionDenied, actor.Role, from, to)
	}

	input, err := o.gateInput(ctx, session, now)
	if err != nil {
		return nil, err
	}

	var result compliance.Result
	guard := func(context.Context) error {
		result = o.gate.Evaluate(compliance.Transition{From: session.Phase, To: targetPhase}, input)
		if !result.Passed {
			var failures []onboarding.RuleFailure
			for _, f := range result.Failures {
				if f.Severity == compliance.SeverityBlocking {
					failures = append(failures, onboarding.RuleFailure{
						RuleID:   f.RuleID,
						Severity: string(f.Severity),
						Reason:   f.Reason,
					})
				}
			}
			return &onboarding.ComplianceError{Failures: failures}
		}
		return nil
	}

	machine := buildPhaseMachine(from, map[domainwf.Trigger]domainwf.GuardFunc{trigger: guard})
	if err := machine.Fire(ctx, trigger); err != nil {
		var ce *onboarding.ComplianceError
		if errors.As(err, &ce) {
			o.logger.Info("Transition blocked by compliance",
				"session_id", session.ID,
				"target_phase", targetPhase,
				"rule_id", ce.RuleID())
			o.dispatchAsync(ctx, event.NewEvent(event.TypeComplianceBlocked, session.ID, session.EmployeeID,
				map[string]interface{}{"target_phase": targetPhase, "rule_id": ce.RuleID()}))
			return nil, ce
		}
		return nil, err
	}

	for _, f := range result.Failures {
		if f.Severity == compliance.SeverityWarning {
			o.logger.Info("Compliance warning",
				"session_id", session.ID,
				"rule_id", f.RuleID,
				"reason", f.Reason)
		}
	}

	priorPhase := session.Phase
	session.Phase = machine.State().String()
	session.CurrentStep = ""
	if session.Phase == entity.PhaseManager {
		session.CurrentStep = o.firstIncomplete(session, entity.PhaseManager)
	}
	session.UpdatedAt = now

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		if session.Phase == entity.PhaseComplete {
			if err := o.enqueueDocuments(txCtx, session, now); err != nil {
				return err
			}
		}

		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     entity.ActionPhaseTransition,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			PriorPhase: priorPhase,
			NewPhase:   session.Phase,
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Phase transition",
		"session_id", session.ID,
		"prior_phase", priorPhase,
		"new_phase", session.Phase,
		"current_step", session.CurrentStep)

	o.dispatchAsync(ctx, event.NewEvent(event.TypePhaseChanged, session.ID, session.EmployeeID,
		map[string]interface{}{"prior_phase": priorPhase, "new_phase": session.Phase}))

	return session, nil
}

// RequestCorrections moves the session through CORRECTIONS_REQUESTED and back
// to the phase whose audience must correct, clearing completion state for
// exactly the named forms and nothing else.
func (o *orchestratorImpl) RequestCorrections(ctx context.Context, sessionID string, formTypes []string, reason string, actor Actor) (*entity.OnboardingSession, error) {
	if actor.Role != entity.RoleManager && actor.Role != entity.RoleHR {
		return nil, fmt.Errorf("%w: role %s cannot request corrections", onboarding.ErrPermissionDenied, actor.Role)
	}
	if len(formTypes) == 0 {
		return nil, fmt.Errorf("corrections request names no forms")
	}
	if reason == "" {
		return nil, fmt.Errorf("corrections request requires a reason")
	}

	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := o.now()
	if session.IsExpired(now) || session.Phase == entity.PhaseExpired {
		return nil, &onboarding.SessionExpiredError{SessionID: sessionID, ExpiredAt: session.ExpiresAt}
	}

	// All named forms must belong to this session and to a single phase,
	// which determines who resumes.
	targetPhase := ""
	for _, formType := range formTypes {
		if !session.Requires(formType) {
			return nil, fmt.Errorf("%w: %s is not part of session %s", onboarding.ErrUnknownForm, formType, sessionID)
		}
		def, err := o.registry.Get(formType)
		if err != nil {
			return nil, err
		}
		if targetPhase == "" {
			targetPhase = def.Phase
		} else if targetPhase != def.Phase {
			return nil, fmt.Errorf("corrections must target a single phase, got %s and %s", targetPhase, def.Phase)
		}
	}

	resumeTrigger := domainwf.TriggerResumeToEmployee
	if targetPhase == entity.PhaseManager {
		resumeTrigger = domainwf.TriggerResumeToManager
	}

	machine := buildPhaseMachine(domainwf.State(session.Phase), nil)
	if err := machine.Fire(ctx, domainwf.TriggerRequestCorrections); err != nil {
		return nil, err
	}
	if err := machine.Fire(ctx, resumeTrigger); err != nil {
		return nil, err
	}

	priorPhase := session.Phase
	session.Correction = &entity.CorrectionRequest{
		FormTypes:   append([]string(nil), formTypes...),
		Reason:      reason,
		TargetPhase: targetPhase,
		RequestedBy: actor.ID,
		RequestedAt: now,
	}

	// Data-isolation invariant: only the named forms lose completion state.
	for _, formType := range formTypes {
		delete(session.Completions, formType)
	}

	session.Phase = machine.State().String()
	session.CurrentStep = o.firstIncomplete(session, targetPhase)
	session.UpdatedAt = now

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"form_types": formTypes,
			"reason":     reason,
		})
		if err := o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     entity.ActionCorrectionsRequested,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			PriorPhase: priorPhase,
			NewPhase:   entity.PhaseCorrections,
			Details:    string(details),
			Timestamp:  now,
		}); err != nil {
			return err
		}

		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     entity.ActionCorrectionsResumed,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			PriorPhase: entity.PhaseCorrections,
			NewPhase:   session.Phase,
			Timestamp:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("Corrections requested",
		"session_id", session.ID,
		"forms", formTypes,
		"target_phase", targetPhase)

	o.dispatchAsync(ctx, event.NewEvent(event.TypeCorrectionsRequested, session.ID, session.EmployeeID,
		map[string]interface{}{"form_types": formTypes, "target_phase": targetPhase, "reason": reason}))

	return session, nil
}

// ExpireStaleSessions sweeps sessions past their deadline into the terminal
// EXPIRED phase. Data is retained for audit; only further workflow action is
// barred.
func (o *orchestratorImpl) ExpireStaleSessions(ctx context.Context) (int, error) {
	now := o.now()
	stale, err := o.sessions.ListStale(ctx, now, o.config.StaleBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	expired := 0
	for _, candidate := range stale {
		if err := o.expireOne(ctx, candidate.ID); err != nil {
			o.logger.Error("Failed to expire session", "error", err, "session_id", candidate.ID)
			continue
		}
		expired++
	}

	if expired > 0 {
		o.logger.Info("Expired stale sessions", "count", expired)
	}
	return expired, nil
}

func (o *orchestratorImpl) expireOne(ctx context.Context, sessionID string) error {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	now := o.now()
	// Re-check under the lock: a racing transition may have completed the
	// session, or another sweep may have expired it already.
	if session.IsTerminal() || !session.IsExpired(now) {
		return nil
	}

	machine := buildPhaseMachine(domainwf.State(session.Phase), nil)
	if err := machine.Fire(ctx, domainwf.TriggerExpire); err != nil {
		return err
	}

	priorPhase := session.Phase
	session.Phase = machine.State().String()
	session.CurrentStep = ""
	session.UpdatedAt = now

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    entity.RoleSystem,
			ActorRole:  entity.RoleSystem,
			Action:     entity.ActionExpired,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			PriorPhase: priorPhase,
			NewPhase:   session.Phase,
			Timestamp:  now,
		})
	})
	if err != nil {
		return err
	}

	o.dispatchAsync(ctx, event.NewEvent(event.TypeSessionExpired, session.ID, session.EmployeeID,
		map[string]interface{}{"prior_phase": priorPhase}))
	return nil
}

// MarkDocumentsArchived flips the archival flag once every document job for a
// completed session has finished. "Workflow complete" and "documents
// archived" stay distinct flags.
func (o *orchestratorImpl) MarkDocumentsArchived(ctx context.Context, sessionID string) error {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Phase != entity.PhaseComplete {
		return fmt.Errorf("session %s is not complete", sessionID)
	}
	if session.DocumentsArchived {
		return nil
	}

	outstanding, err := o.jobs.CountOutstanding(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count outstanding jobs: %w", err)
	}
	if outstanding > 0 {
		return fmt.Errorf("session %s has %d outstanding document jobs", sessionID, outstanding)
	}

	now := o.now()
	session.DocumentsArchived = true
	session.NeedsAttention = ""
	session.UpdatedAt = now

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    entity.RoleSystem,
			ActorRole:  entity.RoleSystem,
			Action:     entity.ActionDocumentsArchived,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			Timestamp:  now,
		})
	})
	if err != nil {
		return err
	}

	o.logger.Info("Session documents archived", "session_id", sessionID)
	o.dispatchAsync(ctx, event.NewEvent(event.TypeDocumentArchived, session.ID, session.EmployeeID, nil))
	return nil
}

// SetNeedsAttention records a standing failure flag visible to HR, e.g. a
// document job that exhausted its retries.
func (o *orchestratorImpl) SetNeedsAttention(ctx context.Context, sessionID, reason string) error {
	unlock := o.locks.lock(sessionID)
	defer unlock()

	session, err := o.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	now := o.now()
	session.NeedsAttention = reason
	session.UpdatedAt = now

	return o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.sessions.Update(txCtx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		return o.audit.Append(txCtx, &entity.AuditEntry{
			ActorID:    entity.RoleSystem,
			ActorRole:  entity.RoleSystem,
			Action:     entity.ActionNeedsAttention,
			TargetType: entity.TargetSession,
			TargetID:   session.ID,
			Details:    fmt.Sprintf(`{"reason":%q}`, reason),
			Timestamp:  now,
		})
	})
}

// gateInput assembles the consistent snapshot a compliance evaluation runs
// against.
func (o *orchestratorImpl) gateInput(ctx context.Context, session *entity.OnboardingSession, now time.Time) (compliance.Input, error) {
	all, err := o.records.GetAll(ctx, session.EmployeeID)
	if err != nil {
		return compliance.Input{}, fmt.Errorf("load form records: %w", err)
	}
	byType := make(map[string]*entity.EmployeeFormRecord, len(all))
	for _, rec := range all {
		byType[rec.FormType] = rec
	}

	openUpdates, err := o.updates.ListAwaitingApproval(ctx, session.EmployeeID)
	if err != nil {
		return compliance.Input{}, fmt.Errorf("load open updates: %w", err)
	}

	return compliance.Input{
		Session:     session,
		Records:     byType,
		OpenUpdates: openUpdates,
		PhaseForms:  o.registry.PhaseForms(session.RequiredForms),
		Now:         now,
	}, nil
}

// enqueueDocuments schedules document generation for every compliance form
// the session carries. Jobs are keyed by data version, so re-enqueueing is
// harmless.
func (o *orchestratorImpl) enqueueDocuments(ctx context.Context, session *entity.OnboardingSession, now time.Time) error {
	for _, formType := range session.RequiredForms {
		def, err := o.registry.Get(formType)
		if err != nil || !def.GeneratesDocument {
			continue
		}
		completion := session.Completion(formType)
		if completion == nil {
			continue
		}
		job := &entity.DocumentJob{
			SessionID:     session.ID,
			EmployeeID:    session.EmployeeID,
			FormType:      formType,
			DataVersion:   completion.DataVersion,
			Status:        entity.JobStatusPending,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := o.jobs.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue document job for %s: %w", formType, err)
		}
	}
	return nil
}

// nextStep returns the next required form of the session's phase that has no
// completion, or empty when the phase's steps are done.
func (o *orchestratorImpl) nextStep(session *entity.OnboardingSession) string {
	return o.firstIncomplete(session, session.Phase)
}

func (o *orchestratorImpl) firstIncomplete(session *entity.OnboardingSession, phase string) string {
	for _, formType := range session.RequiredForms {
		def, err := o.registry.Get(formType)
		if err != nil || def.Phase != phase {
			continue
		}
		if session.Completion(formType) == nil {
			return formType
		}
	}
	return ""
}

func (o *orchestratorImpl) authorizeStep(phase string, actor Actor) error {
	switch phase {
	case entity.PhaseEmployee:
		if actor.Role == entity.RoleEmployee || actor.Role == entity.RoleSystem {
			return nil
		}
	case entity.PhaseManager:
		if actor.Role == entity.RoleManager {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot complete %s-phase steps", onboarding.ErrPermissionDenied, actor.Role, phase)
}

func (o *orchestratorImpl) dispatchAsync(ctx context.Context, evt *event.Event) {
	if o.dispatcher != nil {
		o.dispatcher.DispatchAsync(ctx, evt)
	}
}

func roleAllowed(allowed []string, role string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
