package entity

// Phase constants for OnboardingSession
const (
	PhaseEmployee    = "EMPLOYEE"
	PhaseManager     = "MANAGER"
	PhaseHR          = "HR"
	PhaseComplete    = "COMPLETE"
	PhaseCorrections = "CORRECTIONS_REQUESTED"
	PhaseExpired     = "EXPIRED"
)

// Form type constants
const (
	FormPersonalInfo      = "PERSONAL_INFO"
	FormI9Section1        = "I9_SECTION1"
	FormI9Section2        = "I9_SECTION2"
	FormW4                = "W4"
	FormDirectDeposit     = "DIRECT_DEPOSIT"
	FormHealthInsurance   = "HEALTH_INSURANCE"
	FormEmergencyContacts = "EMERGENCY_CONTACTS"
	FormPolicyAck         = "POLICY_ACKNOWLEDGMENT"
	FormManagerSignoff    = "MANAGER_SIGNOFF"
)

// Actor role constants
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleSystem   = "system"
)

// Audit action constants
const (
	ActionInitiated            = "initiated"
	ActionStepCompleted        = "step_completed"
	ActionPhaseTransition      = "phase_transition"
	ActionCorrectionsRequested = "corrections_requested"
	ActionCorrectionsResumed   = "corrections_resumed"
	ActionExpired              = "expired"
	ActionUpdateLinkIssued     = "update_link_issued"
	ActionFormUpdated          = "form_updated"
	ActionUpdateAcknowledged   = "update_acknowledged"
	ActionDocumentsArchived    = "documents_archived"
	ActionNeedsAttention       = "needs_attention"
)

// Audit target type constants
const (
	TargetSession       = "onboarding_session"
	TargetUpdateSession = "form_update_session"
	TargetFormRecord    = "employee_form"
)

// Document job status constants
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)
