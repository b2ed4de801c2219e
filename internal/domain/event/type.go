package event

// Type identifies the type of domain event
type Type string

const (
	TypeSessionInitiated     Type = "session.initiated"
	TypePhaseChanged         Type = "session.phase_changed"
	TypeStepCompleted        Type = "session.step_completed"
	TypeCorrectionsRequested Type = "session.corrections_requested"
	TypeSessionExpired       Type = "session.expired"
	TypeComplianceBlocked    Type = "compliance.blocked"
	TypeFormUpdateCompleted  Type = "form_update.completed"
	TypeDocumentArchived     Type = "document.archived"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSessionInitiated,
		TypePhaseChanged,
		TypeStepCompleted,
		TypeCorrectionsRequested,
		TypeSessionExpired,
		TypeComplianceBlocked,
		TypeFormUpdateCompleted,
		TypeDocumentArchived:
		return true
	default:
		return false
	}
}
