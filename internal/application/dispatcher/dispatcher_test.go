package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crestlinehotels/onboarding/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) HasInfo(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range m.infos {
		if info == msg {
			return true
		}
	}
	return false
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func TestNewDispatcher(t *testing.T) {
	t.Run("creates dispatcher without logger", func(t *testing.T) {
		d := NewDispatcher()
		if d == nil {
			t.Fatal("expected non-nil dispatcher")
		}
	})

	t.Run("creates dispatcher with logger", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		if d == nil {
			t.Fatal("expected non-nil dispatcher")
		}
	})
}

func TestSubscribe(t *testing.T) {
	t.Run("subscribes handler with auto-generated name", func(t *testing.T) {
		d := NewDispatcher()
		called := false

		d.Subscribe(event.TypeSessionInitiated, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		evt := event.NewEvent(event.TypeSessionInitiated, "sess-1", "emp-1", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		if !called {
			t.Error("expected handler to be called")
		}
	})

	t.Run("subscribes multiple handlers to same event type", func(t *testing.T) {
		d := NewDispatcher()
		called1, called2 := false, false

		d.Subscribe(event.TypePhaseChanged, func(ctx context.Context, evt *event.Event) error {
			called1 = true
			return nil
		})
		d.Subscribe(event.TypePhaseChanged, func(ctx context.Context, evt *event.Event) error {
			called2 = true
			return nil
		})

		evt := event.NewEvent(event.TypePhaseChanged, "sess-1", "emp-1", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		if !called1 || !called2 {
			t.Error("expected both handlers to be called")
		}
	})

	t.Run("handler only receives its event type", func(t *testing.T) {
		d := NewDispatcher()
		called := false

		d.Subscribe(event.TypeSessionExpired, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		evt := event.NewEvent(event.TypePhaseChanged, "sess-1", "emp-1", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		if called {
			t.Error("expected handler not to be called for another event type")
		}
	})
}

func TestSubscribeNamed(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.SubscribeNamed(event.TypeSessionInitiated, "test-handler", func(ctx context.Context, evt *event.Event) error {
		return nil
	})

	if !logger.HasInfo("Handler registered") {
		t.Error("expected registration to be logged")
	}
}

func TestDispatch(t *testing.T) {
	t.Run("passes event payload to handler", func(t *testing.T) {
		d := NewDispatcher()
		var gotPhase string

		d.Subscribe(event.TypePhaseChanged, func(ctx context.Context, evt *event.Event) error {
			gotPhase = evt.GetPayloadString("new_phase")
			return nil
		})

		evt := event.NewEvent(event.TypePhaseChanged, "sess-1", "emp-1", map[string]interface{}{
			"prior_phase": "EMPLOYEE",
			"new_phase":   "MANAGER",
		})
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		if gotPhase != "MANAGER" {
			t.Errorf("expected payload new_phase MANAGER, got %q", gotPhase)
		}
	})

	t.Run("returns first handler error", func(t *testing.T) {
		d := NewDispatcher()
		wantErr := errors.New("handler failed")
		secondCalled := false

		d.SubscribeNamed(event.TypeSessionInitiated, "failing", func(ctx context.Context, evt *event.Event) error {
			return wantErr
		})
		d.SubscribeNamed(event.TypeSessionInitiated, "after", func(ctx context.Context, evt *event.Event) error {
			secondCalled = true
			return nil
		})

		evt := event.NewEvent(event.TypeSessionInitiated, "sess-1", "emp-1", nil)
		err := d.Dispatch(context.Background(), evt)

		if !errors.Is(err, wantErr) {
			t.Fatalf("expected wrapped handler error, got %v", err)
		}
		if secondCalled {
			t.Error("expected dispatch to stop at the failing handler")
		}
	})

	t.Run("recovers handler panic as error", func(t *testing.T) {
		d := NewDispatcher()

		d.Subscribe(event.TypeSessionInitiated, func(ctx context.Context, evt *event.Event) error {
			panic("boom")
		})

		evt := event.NewEvent(event.TypeSessionInitiated, "sess-1", "emp-1", nil)
		err := d.Dispatch(context.Background(), evt)

		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
	})

	t.Run("no handlers is a no-op", func(t *testing.T) {
		d := NewDispatcher()
		evt := event.NewEvent(event.TypeDocumentArchived, "sess-1", "emp-1", nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("calls all handlers without blocking", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32

		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeStepCompleted, func(ctx context.Context, evt *event.Event) error {
				count.Add(1)
				return nil
			})
		}

		evt := event.NewEvent(event.TypeStepCompleted, "sess-1", "emp-1", nil)
		d.DispatchAsync(context.Background(), evt)

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if got := count.Load(); got != 3 {
			t.Errorf("expected 3 handler calls, got %d", got)
		}
	})

	t.Run("handler error is logged, not propagated", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.Subscribe(event.TypeStepCompleted, func(ctx context.Context, evt *event.Event) error {
			return fmt.Errorf("async failure")
		})

		evt := event.NewEvent(event.TypeStepCompleted, "sess-1", "emp-1", nil)
		d.DispatchAsync(context.Background(), evt)

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if logger.ErrorCount() == 0 {
			t.Error("expected async handler error to be logged")
		}
	})

	t.Run("concurrent dispatches are safe", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32

		d.Subscribe(event.TypeStepCompleted, func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				evt := event.NewEvent(event.TypeStepCompleted, "sess-1", "emp-1", nil)
				d.DispatchAsync(context.Background(), evt)
			}()
		}
		wg.Wait()

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if got := count.Load(); got != 10 {
			t.Errorf("expected 10 handler calls, got %d", got)
		}
	})
}

func TestClose(t *testing.T) {
	t.Run("waits for in-flight async handlers", func(t *testing.T) {
		d := NewDispatcher()
		var finished atomic.Bool

		d.Subscribe(event.TypeSessionExpired, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		})

		evt := event.NewEvent(event.TypeSessionExpired, "sess-1", "emp-1", nil)
		d.DispatchAsync(context.Background(), evt)

		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if !finished.Load() {
			t.Error("expected close to wait for the in-flight handler")
		}
	})

	t.Run("double close returns error", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("first close failed: %v", err)
		}
		if err := d.Close(); err == nil {
			t.Error("expected error on second close")
		}
	})

	t.Run("dispatch after close is rejected", func(t *testing.T) {
		d := NewDispatcher()
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		evt := event.NewEvent(event.TypeSessionInitiated, "sess-1", "emp-1", nil)
		if err := d.Dispatch(context.Background(), evt); err == nil {
			t.Error("expected error dispatching on a closed dispatcher")
		}
	})
}
