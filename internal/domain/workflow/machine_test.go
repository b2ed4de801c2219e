package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPhaseBuilder() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateEmployee).
		Permit(TriggerSubmitToManager, StateManager).
		Permit(TriggerExpire, StateExpired)
	b.Configure(StateManager).
		Permit(TriggerSubmitToHR, StateHR).
		Permit(TriggerRequestCorrections, StateCorrections)
	b.Configure(StateHR).
		Permit(TriggerApprove, StateComplete)
	b.Configure(StateCorrections).
		Permit(TriggerResumeToEmployee, StateEmployee).
		Permit(TriggerResumeToManager, StateManager)
	return b
}

func TestStateMachine_Fire(t *testing.T) {
	ctx := context.Background()

	t.Run("walks the forward phase sequence", func(t *testing.T) {
		m := newPhaseBuilder().Build(StateEmployee)

		require.NoError(t, m.Fire(ctx, TriggerSubmitToManager))
		assert.Equal(t, StateManager, m.State())

		require.NoError(t, m.Fire(ctx, TriggerSubmitToHR))
		assert.Equal(t, StateHR, m.State())

		require.NoError(t, m.Fire(ctx, TriggerApprove))
		assert.Equal(t, StateComplete, m.State())
	})

	t.Run("rejects a trigger not permitted in the current state", func(t *testing.T) {
		m := newPhaseBuilder().Build(StateEmployee)

		err := m.Fire(ctx, TriggerApprove)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, StateEmployee, m.State())
	})

	t.Run("rejects any trigger from a terminal state", func(t *testing.T) {
		m := newPhaseBuilder().Build(StateComplete)

		err := m.Fire(ctx, TriggerSubmitToManager)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("corrections detour and resume", func(t *testing.T) {
		m := newPhaseBuilder().Build(StateManager)

		require.NoError(t, m.Fire(ctx, TriggerRequestCorrections))
		assert.Equal(t, StateCorrections, m.State())

		require.NoError(t, m.Fire(ctx, TriggerResumeToEmployee))
		assert.Equal(t, StateEmployee, m.State())
	})
}

type blockedError struct {
	rule string
}

func (e *blockedError) Error() string {
	return fmt.Sprintf("blocked by %s", e.rule)
}

func TestStateMachine_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("passing guard permits the transition", func(t *testing.T) {
		b := NewBuilder()
		b.Configure(StateHR).
			PermitIf(TriggerApprove, StateComplete, func(ctx context.Context) error {
				return nil
			})
		m := b.Build(StateHR)

		require.NoError(t, m.Fire(ctx, TriggerApprove))
		assert.Equal(t, StateComplete, m.State())
	})

	t.Run("failing guard vetoes and surfaces its error", func(t *testing.T) {
		veto := &blockedError{rule: "PHASE_FORMS_COMPLETE"}
		b := NewBuilder()
		b.Configure(StateEmployee).
			PermitIf(TriggerSubmitToManager, StateManager, func(ctx context.Context) error {
				return veto
			})
		m := b.Build(StateEmployee)

		err := m.Fire(ctx, TriggerSubmitToManager)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGuardFailed)
		assert.Equal(t, StateEmployee, m.State(), "state must not change on a vetoed transition")

		var be *blockedError
		require.True(t, errors.As(err, &be), "guard's own error must be extractable")
		assert.Equal(t, "PHASE_FORMS_COMPLETE", be.rule)
	})

	t.Run("nil guard via PermitIf behaves as unguarded", func(t *testing.T) {
		b := NewBuilder()
		b.Configure(StateEmployee).
			PermitIf(TriggerSubmitToManager, StateManager, nil)
		m := b.Build(StateEmployee)

		require.NoError(t, m.Fire(ctx, TriggerSubmitToManager))
		assert.Equal(t, StateManager, m.State())
	})

	t.Run("falls through to the next transition when a guard fails", func(t *testing.T) {
		b := NewBuilder()
		b.Configure(StateCorrections).
			PermitIf(TriggerResumeToManager, StateManager, func(ctx context.Context) error {
				return errors.New("not this one")
			}).
			PermitIf(TriggerResumeToManager, StateEmployee, func(ctx context.Context) error {
				return nil
			})
		m := b.Build(StateCorrections)

		require.NoError(t, m.Fire(ctx, TriggerResumeToManager))
		assert.Equal(t, StateEmployee, m.State())
	})

	t.Run("guard runs only on Fire, never on CanFire", func(t *testing.T) {
		guardCalls := 0
		b := NewBuilder()
		b.Configure(StateManager).
			PermitIf(TriggerSubmitToHR, StateHR, func(ctx context.Context) error {
				guardCalls++
				return nil
			})
		m := b.Build(StateManager)

		assert.True(t, m.CanFire(TriggerSubmitToHR))
		assert.Equal(t, 0, guardCalls)

		require.NoError(t, m.Fire(ctx, TriggerSubmitToHR))
		assert.Equal(t, 1, guardCalls)
	})
}

func TestStateMachine_CanFire(t *testing.T) {
	m := newPhaseBuilder().Build(StateManager)

	assert.True(t, m.CanFire(TriggerSubmitToHR))
	assert.True(t, m.CanFire(TriggerRequestCorrections))
	assert.False(t, m.CanFire(TriggerApprove))
	assert.False(t, m.CanFire(TriggerExpire))
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	m := newPhaseBuilder().Build(StateManager)

	triggers := m.PermittedTriggers()
	assert.ElementsMatch(t, []Trigger{TriggerSubmitToHR, TriggerRequestCorrections}, triggers)

	terminal := newPhaseBuilder().Build(StateComplete)
	assert.Empty(t, terminal.PermittedTriggers())
}

func TestStateMachineBuilder_Reuse(t *testing.T) {
	ctx := context.Background()
	b := newPhaseBuilder()

	m1 := b.Build(StateEmployee)
	m2 := b.Build(StateEmployee)

	require.NoError(t, m1.Fire(ctx, TriggerSubmitToManager))

	assert.Equal(t, StateManager, m1.State())
	assert.Equal(t, StateEmployee, m2.State(), "machines built from one builder must be independent")
}

func TestStateMachineBuilder_PanicsOnInvalidState(t *testing.T) {
	b := NewBuilder()

	assert.Panics(t, func() {
		b.Configure(State("NOT_A_PHASE"))
	})
	assert.Panics(t, func() {
		b.Configure(StateEmployee).Permit(TriggerExpire, State("NOT_A_PHASE"))
	})
	assert.Panics(t, func() {
		b.Build(State("NOT_A_PHASE"))
	})
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, StateComplete.IsTerminal())
	assert.True(t, StateExpired.IsTerminal())
	assert.False(t, StateEmployee.IsTerminal())
	assert.False(t, StateManager.IsTerminal())
	assert.False(t, StateHR.IsTerminal())
	assert.False(t, StateCorrections.IsTerminal())
}
