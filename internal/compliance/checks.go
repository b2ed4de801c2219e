package compliance

import (
	"fmt"
	"strings"
	"time"

	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

// Rule IDs. These are part of the API surface: rejected transitions carry
// them verbatim so the manager/HR UI can explain corrective action.
const (
	RuleI9Section2Required    = "I9_SECTION2_REQUIRED"
	RuleI9Section2Deadline    = "I9_SECTION2_WITHIN_3_BUSINESS_DAYS"
	RulePhaseFormsComplete    = "PHASE_FORMS_COMPLETE"
	RuleNoOpenCorrections     = "NO_OPEN_CORRECTIONS"
	RulePendingUpdateApproval = "PENDING_UPDATE_APPROVAL"
	RuleI9DeadlineApproaching = "I9_SECTION2_DEADLINE_APPROACHING"
)

func defaultChecks(cal *Calendar, i9Window int) []Check {
	return []Check{
		{
			ID:       RulePhaseFormsComplete,
			Severity: SeverityBlocking,
			AppliesTo: func(tr Transition) bool {
				return tr.From == entity.PhaseEmployee || tr.From == entity.PhaseManager
			},
			Evaluate: func(in Input) (bool, string) {
				// Signature enforcement happens at completion time, where
				// the form definition is known; here only presence counts.
				var missing []string
				for _, formType := range in.PhaseForms[in.Session.Phase] {
					rec := in.Records[formType]
					switch {
					case in.Session.Completion(formType) == nil:
						missing = append(missing, formType)
					case rec == nil || rec.Data == "":
						missing = append(missing, formType+" (no data)")
					}
				}
				if len(missing) > 0 {
					return false, fmt.Sprintf("required forms incomplete for %s phase: %s",
						in.Session.Phase, strings.Join(missing, ", "))
				}
				return true, ""
			},
		},
		{
			ID:       RuleI9Section2Required,
			Severity: SeverityBlocking,
			AppliesTo: func(tr Transition) bool {
				return tr.From == entity.PhaseManager && tr.To == entity.PhaseHR
			},
			Evaluate: func(in Input) (bool, string) {
				if !in.Session.Requires(entity.FormI9Section2) {
					return true, ""
				}
				rec := in.Records[entity.FormI9Section2]
				if rec == nil || rec.Data == "" {
					return false, "I-9 Section 2 has not been completed by the manager"
				}
				if rec.Signature == "" {
					return false, "I-9 Section 2 is missing the manager signature"
				}
				return true, ""
			},
		},
		{
			ID:       RuleI9Section2Deadline,
			Severity: SeverityBlocking,
			AppliesTo: func(tr Transition) bool {
				return (tr.From == entity.PhaseManager && tr.To == entity.PhaseHR) ||
					(tr.From == entity.PhaseHR && tr.To == entity.PhaseComplete)
			},
			Evaluate: func(in Input) (bool, string) {
				sec1 := in.Records[entity.FormI9Section1]
				if sec1 == nil || sec1.Data == "" {
					// Section 1 absence is caught by the forms-complete rule.
					return true, ""
				}

				deadline := cal.Deadline(sec1.CompletedAt, i9Window)
				actionAt := in.Now
				if sec2 := in.Records[entity.FormI9Section2]; sec2 != nil && sec2.Data != "" {
					actionAt = sec2.CompletedAt
				}

				if actionAt.After(deadline) {
					return false, fmt.Sprintf(
						"I-9 Section 2 was due within %d business days of Section 1 (deadline %s)",
						i9Window, deadline.Format(time.RFC3339))
				}
				return true, ""
			},
		},
		{
			ID:       RuleNoOpenCorrections,
			Severity: SeverityBlocking,
			AppliesTo: func(tr Transition) bool {
				return tr.From == entity.PhaseHR && tr.To == entity.PhaseComplete
			},
			Evaluate: func(in Input) (bool, string) {
				corr := in.Session.Correction
				if corr == nil {
					return true, ""
				}
				var open []string
				for _, formType := range corr.FormTypes {
					if in.Session.Completion(formType) == nil {
						open = append(open, formType)
					}
				}
				if len(open) > 0 {
					return false, fmt.Sprintf("corrections outstanding on: %s", strings.Join(open, ", "))
				}
				return true, ""
			},
		},
		{
			ID:       RulePendingUpdateApproval,
			Severity: SeverityBlocking,
			AppliesTo: func(tr Transition) bool {
				return tr.From == entity.PhaseHR && tr.To == entity.PhaseComplete
			},
			Evaluate: func(in Input) (bool, string) {
				var pending []string
				for _, upd := range in.OpenUpdates {
					if upd.AwaitingApproval() {
						pending = append(pending, upd.FormType)
					}
				}
				if len(pending) > 0 {
					return false, fmt.Sprintf(
						"form updates awaiting downstream approval: %s", strings.Join(pending, ", "))
				}
				return true, ""
			},
		},
		{
			ID:       RuleI9DeadlineApproaching,
			Severity: SeverityWarning,
			AppliesTo: func(tr Transition) bool {
				return tr.From == entity.PhaseEmployee && tr.To == entity.PhaseManager
			},
			Evaluate: func(in Input) (bool, string) {
				sec1 := in.Records[entity.FormI9Section1]
				if sec1 == nil || sec1.Data == "" {
					return true, ""
				}
				if sec2 := in.Records[entity.FormI9Section2]; sec2 != nil && sec2.Data != "" {
					return true, ""
				}

				deadline := cal.Deadline(sec1.CompletedAt, i9Window)
				if in.Now.After(deadline.Add(-24 * time.Hour)) {
					return false, fmt.Sprintf(
						"I-9 Section 2 deadline is %s; less than one day remains",
						deadline.Format(time.RFC3339))
				}
				return true, ""
			},
		},
	}
}
