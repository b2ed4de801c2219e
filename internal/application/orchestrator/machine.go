package orchestrator

import (
	domainwf "github.com/crestlinehotels/onboarding/internal/domain/workflow"
)

// buildPhaseMachine creates a state machine configured for the onboarding
// phase graph. Forward transitions carry the caller-supplied compliance
// guards; corrections and expiry edges are unguarded because their
// preconditions are checked by the orchestrator before firing.
func buildPhaseMachine(current domainwf.State, guards map[domainwf.Trigger]domainwf.GuardFunc) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateEmployee).
		PermitIf(domainwf.TriggerSubmitToManager, domainwf.StateManager, guards[domainwf.TriggerSubmitToManager]).
		Permit(domainwf.TriggerRequestCorrections, domainwf.StateCorrections).
		Permit(domainwf.TriggerExpire, domainwf.StateExpired)

	builder.Configure(domainwf.StateManager).
		PermitIf(domainwf.TriggerSubmitToHR, domainwf.StateHR, guards[domainwf.TriggerSubmitToHR]).
		Permit(domainwf.TriggerRequestCorrections, domainwf.StateCorrections).
		Permit(domainwf.TriggerExpire, domainwf.StateExpired)

	builder.Configure(domainwf.StateHR).
		PermitIf(domainwf.TriggerApprove, domainwf.StateComplete, guards[domainwf.TriggerApprove]).
		Permit(domainwf.TriggerRequestCorrections, domainwf.StateCorrections).
		Permit(domainwf.TriggerExpire, domainwf.StateExpired)

	builder.Configure(domainwf.StateCorrections).
		Permit(domainwf.TriggerResumeToEmployee, domainwf.StateEmployee).
		Permit(domainwf.TriggerResumeToManager, domainwf.StateManager).
		Permit(domainwf.TriggerExpire, domainwf.StateExpired)

	// COMPLETE and EXPIRED are terminal, no outgoing transitions.

	return builder.Build(current)
}

// transitionTriggers maps a (from, to) phase pair to the machine trigger.
var transitionTriggers = map[[2]domainwf.State]domainwf.Trigger{
	{domainwf.StateEmployee, domainwf.StateManager}: domainwf.TriggerSubmitToManager,
	{domainwf.StateManager, domainwf.StateHR}:       domainwf.TriggerSubmitToHR,
	{domainwf.StateHR, domainwf.StateComplete}:      domainwf.TriggerApprove,
}
