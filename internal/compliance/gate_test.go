package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestlinehotels/onboarding/internal/domain/entity"
)

func failureIDs(r Result) []string {
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func signedRecord(formType string, completedAt time.Time) *entity.EmployeeFormRecord {
	return &entity.EmployeeFormRecord{
		EmployeeID:  "emp-1",
		FormType:    formType,
		Data:        `{"ok":true}`,
		Signature:   "sig",
		Version:     1,
		CompletedAt: completedAt,
	}
}

func testInput(phase string, records map[string]*entity.EmployeeFormRecord) Input {
	session := &entity.OnboardingSession{
		ID:            "sess-1",
		EmployeeID:    "emp-1",
		Phase:         phase,
		RequiredForms: []string{entity.FormPersonalInfo, entity.FormI9Section1, entity.FormI9Section2},
		Completions:   make(map[string]*entity.FormCompletion),
		ExpiresAt:     date(2026, time.February, 1, 0, 0, 0),
	}
	for formType, rec := range records {
		session.Completions[formType] = &entity.FormCompletion{
			FormType:    formType,
			CompletedAt: rec.CompletedAt,
			DataVersion: rec.Version,
		}
	}
	return Input{
		Session: session,
		Records: records,
		PhaseForms: map[string][]string{
			entity.PhaseEmployee: {entity.FormPersonalInfo, entity.FormI9Section1},
			entity.PhaseManager:  {entity.FormI9Section2},
		},
		Now: date(2026, time.January, 5, 12, 0, 0),
	}
}

func TestGate_PhaseFormsComplete(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	monday := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseEmployee, To: entity.PhaseManager}

	t.Run("all phase forms completed and signed", func(t *testing.T) {
		in := testInput(entity.PhaseEmployee, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
		})
		result := gate.Evaluate(tr, in)
		assert.True(t, result.Passed)
		assert.Empty(t, result.Failures)
	})

	t.Run("missing completion blocks", func(t *testing.T) {
		in := testInput(entity.PhaseEmployee, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
		})
		result := gate.Evaluate(tr, in)
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RulePhaseFormsComplete)
	})

	t.Run("completion without stored data blocks", func(t *testing.T) {
		empty := signedRecord(entity.FormI9Section1, monday)
		empty.Data = ""
		in := testInput(entity.PhaseEmployee, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   empty,
		})
		result := gate.Evaluate(tr, in)
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RulePhaseFormsComplete)
	})

	t.Run("not applicable to HR approval", func(t *testing.T) {
		in := testInput(entity.PhaseHR, nil)
		result := gate.Evaluate(Transition{From: entity.PhaseHR, To: entity.PhaseComplete}, in)
		assert.NotContains(t, failureIDs(result), RulePhaseFormsComplete)
	})
}

func TestGate_I9Section2Required(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	monday := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseManager, To: entity.PhaseHR}

	t.Run("missing section 2 blocks submission to HR", func(t *testing.T) {
		in := testInput(entity.PhaseManager, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
		})
		result := gate.Evaluate(tr, in)
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RuleI9Section2Required)
	})

	t.Run("unsigned section 2 blocks", func(t *testing.T) {
		sec2 := signedRecord(entity.FormI9Section2, monday)
		sec2.Signature = ""
		in := testInput(entity.PhaseManager, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
			entity.FormI9Section2:   sec2,
		})
		result := gate.Evaluate(tr, in)
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RuleI9Section2Required)
	})

	t.Run("session without section 2 requirement passes", func(t *testing.T) {
		in := testInput(entity.PhaseManager, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
		})
		in.Session.RequiredForms = []string{entity.FormPersonalInfo, entity.FormI9Section1}
		in.PhaseForms = map[string][]string{
			entity.PhaseEmployee: {entity.FormPersonalInfo, entity.FormI9Section1},
		}
		result := gate.Evaluate(tr, in)
		assert.NotContains(t, failureIDs(result), RuleI9Section2Required)
	})
}

func TestGate_I9Section2Deadline(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	// Section 1 on Monday 2026-01-05; three business days end Thursday,
	// so the deadline instant is Friday 2026-01-09 00:00.
	sec1At := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseManager, To: entity.PhaseHR}

	inputAt := func(sec2At *time.Time, now time.Time) Input {
		records := map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, sec1At),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, sec1At),
		}
		if sec2At != nil {
			records[entity.FormI9Section2] = signedRecord(entity.FormI9Section2, *sec2At)
		}
		in := testInput(entity.PhaseManager, records)
		in.Now = now
		return in
	}

	t.Run("section 2 inside the window passes", func(t *testing.T) {
		sec2At := date(2026, time.January, 8, 16, 0, 0)
		result := gate.Evaluate(tr, inputAt(&sec2At, sec2At))
		assert.NotContains(t, failureIDs(result), RuleI9Section2Deadline)
	})

	t.Run("section 2 past the deadline blocks", func(t *testing.T) {
		sec2At := date(2026, time.January, 9, 0, 0, 1)
		result := gate.Evaluate(tr, inputAt(&sec2At, sec2At))
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RuleI9Section2Deadline)
	})

	t.Run("no section 2 yet is judged against now", func(t *testing.T) {
		result := gate.Evaluate(tr, inputAt(nil, date(2026, time.January, 12, 9, 0, 0)))
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RuleI9Section2Deadline)
	})

	t.Run("wider configured window permits a later section 2", func(t *testing.T) {
		wide := NewGate(NewCalendar(nil), WithI9Window(5))
		sec2At := date(2026, time.January, 12, 9, 0, 0)
		result := wide.Evaluate(tr, inputAt(&sec2At, sec2At))
		assert.NotContains(t, failureIDs(result), RuleI9Section2Deadline)
	})
}

func TestGate_NoOpenCorrections(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	monday := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseHR, To: entity.PhaseComplete}

	base := func() Input {
		return testInput(entity.PhaseHR, map[string]*entity.EmployeeFormRecord{
			entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
			entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
			entity.FormI9Section2:   signedRecord(entity.FormI9Section2, monday),
		})
	}

	t.Run("uncorrected forms block approval", func(t *testing.T) {
		in := base()
		in.Session.Correction = &entity.CorrectionRequest{
			FormTypes:   []string{entity.FormW4},
			TargetPhase: entity.PhaseEmployee,
		}
		result := gate.Evaluate(tr, in)
		assert.False(t, result.Passed)
		assert.Contains(t, failureIDs(result), RuleNoOpenCorrections)
	})

	t.Run("resubmitted corrections pass", func(t *testing.T) {
		in := base()
		in.Session.Correction = &entity.CorrectionRequest{
			FormTypes:   []string{entity.FormPersonalInfo},
			TargetPhase: entity.PhaseEmployee,
		}
		result := gate.Evaluate(tr, in)
		assert.NotContains(t, failureIDs(result), RuleNoOpenCorrections)
	})

	t.Run("no corrections round passes", func(t *testing.T) {
		result := gate.Evaluate(tr, base())
		assert.True(t, result.Passed)
	})
}

func TestGate_PendingUpdateApproval(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	monday := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseHR, To: entity.PhaseComplete}

	in := testInput(entity.PhaseHR, map[string]*entity.EmployeeFormRecord{
		entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
		entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
		entity.FormI9Section2:   signedRecord(entity.FormI9Section2, monday),
	})
	completedAt := monday
	in.OpenUpdates = []*entity.FormUpdateSession{
		{
			ID:                         "upd-1",
			EmployeeID:                 "emp-1",
			FormType:                   entity.FormW4,
			RequiresDownstreamApproval: true,
			CompletedAt:                &completedAt,
		},
	}

	result := gate.Evaluate(tr, in)
	require.False(t, result.Passed)
	assert.Contains(t, failureIDs(result), RulePendingUpdateApproval)

	// Acknowledged updates no longer block.
	in.OpenUpdates[0].AcknowledgedAt = &completedAt
	result = gate.Evaluate(tr, in)
	assert.True(t, result.Passed)
}

func TestGate_I9DeadlineApproachingWarning(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	sec1At := date(2026, time.January, 5, 9, 0, 0)
	tr := Transition{From: entity.PhaseEmployee, To: entity.PhaseManager}

	in := testInput(entity.PhaseEmployee, map[string]*entity.EmployeeFormRecord{
		entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, sec1At),
		entity.FormI9Section1:   signedRecord(entity.FormI9Section1, sec1At),
	})
	// Deadline is Friday 00:00; Thursday noon is inside the final day.
	in.Now = date(2026, time.January, 8, 12, 0, 0)

	result := gate.Evaluate(tr, in)

	assert.True(t, result.Passed, "a warning must not veto the transition")
	require.Len(t, result.Failures, 1)
	assert.Equal(t, RuleI9DeadlineApproaching, result.Failures[0].RuleID)
	assert.Equal(t, SeverityWarning, result.Failures[0].Severity)
}

func TestGate_Register(t *testing.T) {
	gate := NewGate(NewCalendar(nil))
	gate.Register(Check{
		ID:       "STATE_WAGE_NOTICE",
		Severity: SeverityBlocking,
		AppliesTo: func(tr Transition) bool {
			return tr.To == entity.PhaseComplete
		},
		Evaluate: func(in Input) (bool, string) {
			return false, "wage notice missing"
		},
	})

	monday := date(2026, time.January, 5, 9, 0, 0)
	in := testInput(entity.PhaseHR, map[string]*entity.EmployeeFormRecord{
		entity.FormPersonalInfo: signedRecord(entity.FormPersonalInfo, monday),
		entity.FormI9Section1:   signedRecord(entity.FormI9Section1, monday),
		entity.FormI9Section2:   signedRecord(entity.FormI9Section2, monday),
	})

	result := gate.Evaluate(Transition{From: entity.PhaseHR, To: entity.PhaseComplete}, in)
	assert.False(t, result.Passed)
	assert.Contains(t, failureIDs(result), "STATE_WAGE_NOTICE")
}
