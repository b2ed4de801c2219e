// Package compliance implements the pure rule-evaluation gate that guards
// phase transitions. The gate owns no mutable state: callers hand it a
// consistent snapshot of the session and its form records, and get back
// pass/fail plus the specific failing rules.
package compliance

import (
	"time"

	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// Severity of a compliance check. A BLOCKING failure vetoes the transition;
// a WARNING is reported but does not.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityWarning  Severity = "WARNING"
)

// Transition names a phase edge under evaluation.
type Transition struct {
	From string
	To   string
}

// Input is the consistent snapshot a gate evaluation runs against.
type Input struct {
	Session *entity.OnboardingSession

	// Records holds the employee's canonical form records keyed by form type.
	Records map[string]*entity.EmployeeFormRecord

	// OpenUpdates are the employee's completed-but-unacknowledged standalone
	// form updates.
	OpenUpdates []*entity.FormUpdateSession

	// PhaseForms maps each phase to its ordered required forms for this
	// session, as derived by the registry at session creation.
	PhaseForms map[string][]string

	Now time.Time
}

// Check is one named rule. Evaluate must be pure.
type Check struct {
	ID        string
	Severity  Severity
	AppliesTo func(tr Transition) bool
	Evaluate  func(in Input) (passed bool, reason string)
}

// Failure is one failed rule with its human-readable reason.
type Failure struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	Reason   string   `json:"reason"`
}

// Result of evaluating a transition. Passed is false only when a BLOCKING
// check failed; warnings ride along in Failures either way.
type Result struct {
	Passed   bool      `json:"passed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Gate evaluates the ordered rule set against phase transitions.
type Gate struct {
	checks   []Check
	calendar *Calendar
	i9Window int
}

// Option configures the gate.
type Option func(*Gate)

// WithI9Window overrides the I-9 Section 2 business-day window (default 3).
func WithI9Window(days int) Option {
	return func(g *Gate) {
		g.i9Window = days
	}
}

// NewGate creates a gate with the federal-compliance rule set registered in
// evaluation order.
func NewGate(calendar *Calendar, opts ...Option) *Gate {
	g := &Gate{
		calendar: calendar,
		i9Window: 3,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.checks = defaultChecks(g.calendar, g.i9Window)
	return g
}

// Register appends an additional check. Exposed for jurisdiction-specific
// rules loaded from configuration.
func (g *Gate) Register(check Check) {
	g.checks = append(g.checks, check)
}

// Evaluate runs every applicable check against the snapshot. It never
// mutates anything and never short-circuits: the caller gets the full list
// of failures, not just the first.
func (g *Gate) Evaluate(tr Transition, in Input) Result {
	result := Result{Passed: true}

	for _, check := range g.checks {
		if check.AppliesTo != nil && !check.AppliesTo(tr) {
			continue
		}

		passed, reason := check.Evaluate(in)
		if passed {
			continue
		}

		result.Failures = append(result.Failures, Failure{
			RuleID:   check.ID,
			Severity: check.Severity,
			Reason:   reason,
		})
		if check.Severity == SeverityBlocking {
			result.Passed = false
		}
	}

	return result
}
