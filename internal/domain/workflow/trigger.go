package workflow

// Trigger represents an event that can cause a phase transition
type Trigger string

const (
	TriggerSubmitToManager    Trigger = "SUBMIT_TO_MANAGER"
	TriggerSubmitToHR         Trigger = "SUBMIT_TO_HR"
	TriggerApprove            Trigger = "APPROVE"
	TriggerRequestCorrections Trigger = "REQUEST_CORRECTIONS"
	TriggerResumeToEmployee   Trigger = "RESUME_TO_EMPLOYEE"
	TriggerResumeToManager    Trigger = "RESUME_TO_MANAGER"
	TriggerExpire             Trigger = "EXPIRE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
