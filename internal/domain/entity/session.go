package entity

import "time"

// FormCompletion records one completed form within an onboarding session.
type FormCompletion struct {
	FormType     string    `json:"form_type"`
	CompletedAt  time.Time `json:"completed_at"`
	DataVersion  int       `json:"data_version"`
	SignatureRef string    `json:"signature_ref,omitempty"`
}

// CorrectionRequest captures an open corrections round on a session.
// TargetPhase names who must correct (EMPLOYEE or MANAGER); FormTypes names
// exactly the forms whose completion state was cleared.
type CorrectionRequest struct {
	FormTypes   []string  `json:"form_types"`
	Reason      string    `json:"reason"`
	TargetPhase string    `json:"target_phase"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

// OnboardingSession represents one employee's progress through the
// three-phase onboarding workflow. It is mutated only through the
// orchestrator; repositories persist it as-is.
type OnboardingSession struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	EmployeeID    string `json:"employee_id"`
	ManagerID     string `json:"manager_id"`
	PropertyID    string `json:"property_id"`

	Phase       string `json:"phase"`
	CurrentStep string `json:"current_step,omitempty"` // empty when no step is active

	// RequiredForms is fixed at session creation, ordered. Which phase a
	// form belongs to is form-type metadata, not stored here.
	RequiredForms []string `json:"required_forms"`

	// Completions is keyed by form type.
	Completions map[string]*FormCompletion `json:"completions"`

	// Correction is the open corrections round, nil when none.
	Correction *CorrectionRequest `json:"correction,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`

	// WorkflowComplete and DocumentsArchived are deliberately separate:
	// HR approval completes the workflow, archival completes only once
	// every compliance document generated cleanly.
	DocumentsArchived bool   `json:"documents_archived"`
	NeedsAttention    string `json:"needs_attention,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the session deadline has passed.
func (s *OnboardingSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsTerminal reports whether the session can take no further workflow action.
func (s *OnboardingSession) IsTerminal() bool {
	return s.Phase == PhaseComplete || s.Phase == PhaseExpired
}

// IsActive reports whether the session still counts against the
// one-active-session-per-application rule.
func (s *OnboardingSession) IsActive(now time.Time) bool {
	return !s.IsTerminal() && !s.IsExpired(now)
}

// Completion returns the completion record for a form type, nil if the form
// has not been completed in this session.
func (s *OnboardingSession) Completion(formType string) *FormCompletion {
	if s.Completions == nil {
		return nil
	}
	return s.Completions[formType]
}

// Completed reports whether every form in the given list has a completion.
func (s *OnboardingSession) Completed(forms []string) bool {
	for _, f := range forms {
		if s.Completion(f) == nil {
			return false
		}
	}
	return true
}

// Requires reports whether the form type is part of this session.
func (s *OnboardingSession) Requires(formType string) bool {
	for _, f := range s.RequiredForms {
		if f == formType {
			return true
		}
	}
	return false
}
