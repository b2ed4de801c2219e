package entity

import "time"

// EmployeeFormRecord is the canonical per-employee record of one form type.
// Both the onboarding orchestrator and the form-update registry write through
// this record; nothing else mutates form data.
type EmployeeFormRecord struct {
	EmployeeID string `json:"employee_id"`
	FormType   string `json:"form_type"`

	// Data is the JSON-encoded form payload.
	Data      string `json:"data"`
	Signature string `json:"signature,omitempty"`

	// Version increments on every write. Document generation is keyed by
	// (session, form type, version) so regeneration stays idempotent.
	Version int `json:"version"`

	// PendingApproval is set when a standalone update to a payroll/tax
	// sensitive form awaits manager or HR acknowledgment. While set, the
	// record is not authoritative for payroll purposes.
	PendingApproval bool `json:"pending_approval"`

	// Source tags the write path: "session:<id>" or "update:<id>".
	Source string `json:"source"`

	CompletedAt time.Time `json:"completed_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
