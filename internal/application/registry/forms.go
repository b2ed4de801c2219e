// Package registry defines the modular form system: per-form-type metadata,
// payload validation, and standalone single-form update sessions. Each form
// type is independently updatable without touching any other form's data.
package registry

import (
	"fmt"

	"github.com/crestlinehotels/onboarding/internal/domain/entity"
	"github.com/crestlinehotels/onboarding/internal/domain/onboarding"
)

// ConditionalRule makes extra fields required when a controlling field has a
// given value, e.g. a transportation method once the employee reports
// needing transportation.
type ConditionalRule struct {
	WhenField    string
	Equals       string
	ThenRequired []string
}

// Definition is the metadata for one form type.
type Definition struct {
	Type  string
	Phase string
	Title string

	RequiredFields []string
	Conditionals   []ConditionalRule

	RequiresSignature bool

	// Updatable marks forms on the standalone-update allow-list.
	Updatable bool

	// RequiresDownstreamApproval is true for forms whose change affects
	// payroll/tax/legal status; updates to them stay pending until
	// acknowledged.
	RequiresDownstreamApproval bool

	// GeneratesDocument marks forms that produce a compliance document at
	// HR approval.
	GeneratesDocument bool
}

// builtinDefinitions lists every form type in onboarding order.
var builtinDefinitions = []Definition{
	{
		Type:           entity.FormPersonalInfo,
		Phase:          entity.PhaseEmployee,
		Title:          "Personal Information",
		RequiredFields: []string{"first_name", "last_name", "date_of_birth", "ssn", "address", "phone"},
		Conditionals: []ConditionalRule{
			{WhenField: "needs_transportation", Equals: "yes", ThenRequired: []string{"transportation_method"}},
		},
		Updatable: true,
	},
	{
		Type:           entity.FormI9Section1,
		Phase:          entity.PhaseEmployee,
		Title:          "Form I-9, Section 1",
		RequiredFields: []string{"citizenship_status", "first_name", "last_name", "date_of_birth", "ssn"},
		Conditionals: []ConditionalRule{
			{WhenField: "citizenship_status", Equals: "alien_authorized", ThenRequired: []string{"work_authorization_expiry", "uscis_number"}},
		},
		RequiresSignature: true,
		GeneratesDocument: true,
	},
	{
		Type:           entity.FormW4,
		Phase:          entity.PhaseEmployee,
		Title:          "Form W-4",
		RequiredFields: []string{"filing_status", "first_name", "last_name", "ssn", "address"},
		Conditionals: []ConditionalRule{
			{WhenField: "multiple_jobs", Equals: "yes", ThenRequired: []string{"extra_withholding"}},
		},
		RequiresSignature:          true,
		Updatable:                  true,
		RequiresDownstreamApproval: true,
		GeneratesDocument:          true,
	},
	{
		Type:                       entity.FormDirectDeposit,
		Phase:                      entity.PhaseEmployee,
		Title:                      "Direct Deposit Authorization",
		RequiredFields:             []string{"bank_name", "routing_number", "account_number", "account_type"},
		RequiresSignature:          true,
		Updatable:                  true,
		RequiresDownstreamApproval: true,
	},
	{
		Type:           entity.FormHealthInsurance,
		Phase:          entity.PhaseEmployee,
		Title:          "Health Insurance Election",
		RequiredFields: []string{"coverage_election"},
		Conditionals: []ConditionalRule{
			{WhenField: "coverage_election", Equals: "enroll", ThenRequired: []string{"plan_id", "coverage_tier"}},
		},
		RequiresSignature: true,
		Updatable:         true,
	},
	{
		Type:           entity.FormEmergencyContacts,
		Phase:          entity.PhaseEmployee,
		Title:          "Emergency Contacts",
		RequiredFields: []string{"primary_name", "primary_phone", "primary_relationship"},
		Updatable:      true,
	},
	{
		Type:              entity.FormPolicyAck,
		Phase:             entity.PhaseEmployee,
		Title:             "Policy Acknowledgments",
		RequiredFields:    []string{"handbook_acknowledged", "conduct_acknowledged"},
		RequiresSignature: true,
		GeneratesDocument: true,
	},
	{
		Type:              entity.FormI9Section2,
		Phase:             entity.PhaseManager,
		Title:             "Form I-9, Section 2 (Employer Review)",
		RequiredFields:    []string{"document_title", "issuing_authority", "document_number", "first_day_of_employment"},
		RequiresSignature: true,
		GeneratesDocument: true,
	},
	{
		Type:              entity.FormManagerSignoff,
		Phase:             entity.PhaseManager,
		Title:             "Manager Onboarding Sign-off",
		RequiredFields:    []string{"verified_forms", "signoff_date"},
		RequiresSignature: true,
	},
}

// Registry holds form definitions and the per-jurisdiction required-forms
// lists. Immutable after construction.
type Registry struct {
	defs  map[string]*Definition
	order []string

	// stateForms overrides the required-forms list per work state
	// (two-letter code); the builtin order applies otherwise.
	stateForms map[string][]string
}

// NewRegistry creates a registry with the builtin definitions and optional
// per-state required-forms overrides from configuration.
func NewRegistry(stateForms map[string][]string) *Registry {
	r := &Registry{
		defs:       make(map[string]*Definition, len(builtinDefinitions)),
		stateForms: stateForms,
	}
	for i := range builtinDefinitions {
		def := builtinDefinitions[i]
		r.defs[def.Type] = &def
		r.order = append(r.order, def.Type)
	}
	return r
}

// Get returns the definition for a form type.
func (r *Registry) Get(formType string) (*Definition, error) {
	def, ok := r.defs[formType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", onboarding.ErrUnknownForm, formType)
	}
	return def, nil
}

// RequiredForms returns the ordered required forms for a work state. The
// result is fixed into the session at creation and never re-derived.
func (r *Registry) RequiredForms(state string) []string {
	if forms, ok := r.stateForms[state]; ok {
		return append([]string(nil), forms...)
	}
	return append([]string(nil), r.order...)
}

// PhaseForms splits an ordered required-forms list by owning phase.
func (r *Registry) PhaseForms(required []string) map[string][]string {
	byPhase := make(map[string][]string)
	for _, formType := range required {
		if def, ok := r.defs[formType]; ok {
			byPhase[def.Phase] = append(byPhase[def.Phase], formType)
		}
	}
	return byPhase
}

// Validate checks required-field presence and conditional-field consistency.
// Structural/schema validation is the caller's collaborator's job; this only
// enforces what the workflow core itself depends on.
func (r *Registry) Validate(formType string, payload map[string]interface{}) error {
	def, err := r.Get(formType)
	if err != nil {
		return err
	}

	var missing []string
	for _, field := range def.RequiredFields {
		if !present(payload, field) {
			missing = append(missing, field)
		}
	}

	for _, rule := range def.Conditionals {
		val, _ := payload[rule.WhenField].(string)
		if val != rule.Equals {
			continue
		}
		for _, field := range rule.ThenRequired {
			if !present(payload, field) {
				missing = append(missing, field)
			}
		}
	}

	if len(missing) > 0 {
		return &onboarding.ValidationError{FormType: formType, Fields: missing}
	}
	return nil
}

func present(payload map[string]interface{}, field string) bool {
	val, ok := payload[field]
	if !ok || val == nil {
		return false
	}
	if s, isStr := val.(string); isStr && s == "" {
		return false
	}
	return true
}
