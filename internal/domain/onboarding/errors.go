// Package onboarding defines the error taxonomy shared by the orchestrator,
// the form/update registry and the HTTP layer. Every rejected operation maps
// to exactly one of these types so callers always learn the specific
// precondition that failed.
package onboarding

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionNotFound is returned when no onboarding session exists for an ID.
	ErrSessionNotFound = errors.New("onboarding session not found")

	// ErrPermissionDenied is returned when the actor's role is not allowed
	// to perform the requested operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnknownForm is returned for a form type the registry does not define.
	ErrUnknownForm = errors.New("unknown form type")

	// ErrTokenNotFound is returned when no update session matches a token.
	ErrTokenNotFound = errors.New("update token not found")
)

// ValidationError reports a payload that failed per-field validation.
// Recoverable: the caller may fix the fields and resubmit.
type ValidationError struct {
	FormType string
	Fields   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: missing or invalid fields [%s]",
		e.FormType, strings.Join(e.Fields, ", "))
}

// StepMismatchError reports a completeStep call against a step that is not
// the session's current step. Not retryable with the same request.
type StepMismatchError struct {
	Expected string
	Got      string
}

func (e *StepMismatchError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("no step is active, got %s", e.Got)
	}
	return fmt.Sprintf("step mismatch: current step is %s, got %s", e.Expected, e.Got)
}

// SessionExpiredError reports an operation against a session past its deadline.
type SessionExpiredError struct {
	SessionID string
	ExpiredAt time.Time
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("session %s expired at %s", e.SessionID, e.ExpiredAt.Format(time.RFC3339))
}

// DuplicateSessionError reports an initiate call while an active session
// already exists for the application.
type DuplicateSessionError struct {
	ApplicationID string
	SessionID     string
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("active onboarding session %s already exists for application %s",
		e.SessionID, e.ApplicationID)
}

// TokenExpiredError reports a form-update token past its TTL. Terminal: no
// retry path reuses a token.
type TokenExpiredError struct {
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("update token expired at %s", e.ExpiredAt.Format(time.RFC3339))
}

// TokenAlreadyUsedError reports a second submission against a single-use token.
type TokenAlreadyUsedError struct {
	UsedAt time.Time
}

func (e *TokenAlreadyUsedError) Error() string {
	return fmt.Sprintf("update token already used at %s", e.UsedAt.Format(time.RFC3339))
}

// UnknownEmployeeError reports an update-link request for an employee with no
// completed record of the form.
type UnknownEmployeeError struct {
	EmployeeID string
	FormType   string
}

func (e *UnknownEmployeeError) Error() string {
	if e.FormType != "" {
		return fmt.Sprintf("employee %s has no completed %s record", e.EmployeeID, e.FormType)
	}
	return fmt.Sprintf("unknown employee %s", e.EmployeeID)
}

// FormNotUpdatableError reports an update-link request for a form type outside
// the individually-updatable allow-list.
type FormNotUpdatableError struct {
	FormType string
}

func (e *FormNotUpdatableError) Error() string {
	return fmt.Sprintf("form type %s is not individually updatable", e.FormType)
}

// RuleFailure is one failed compliance rule, surfaced verbatim to the caller.
type RuleFailure struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Reason   string `json:"reason"`
}

// ComplianceError reports a transition vetoed by one or more blocking
// compliance rules. Never downgraded to a generic forbidden.
type ComplianceError struct {
	Failures []RuleFailure
}

func (e *ComplianceError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.RuleID)
	}
	return fmt.Sprintf("compliance check failed: [%s]", strings.Join(ids, ", "))
}

// RuleID returns the first failing rule ID, for logs and single-rule callers.
func (e *ComplianceError) RuleID() string {
	if len(e.Failures) == 0 {
		return ""
	}
	return e.Failures[0].RuleID
}
