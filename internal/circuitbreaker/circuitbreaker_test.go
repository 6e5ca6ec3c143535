package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

// TestCall_OpensAfterConsecutiveFailures verifies the circuit opens at the
// failure threshold and then rejects without calling fn.
func TestCall_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, Timeout: time.Hour, Component: "forecast"})
	calls := 0
	fail := func() error { calls++; return errBoom }

	for i := 0; i < 2; i++ {
		if err := cb.Call(context.Background(), fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want errBoom", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	err := cb.Call(context.Background(), fail)
	if !errors.Is(err, ErrOpen) {
		t.Errorf("open circuit err = %v, want ErrOpen", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

// TestCall_HalfOpenRecovers verifies the circuit closes after the success
// threshold is met in half-open state.
func TestCall_HalfOpenRecovers(t *testing.T) {
	var mu sync.Mutex
	var transitions []State
	cb := New(Config{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
		Component:        "geocoding",
		OnStateChange: func(component string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			if component != "geocoding" {
				t.Errorf("component = %q", component)
			}
			transitions = append(transitions, to)
		},
	})

	_ = cb.Call(context.Background(), func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Call(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("half-open call err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

// TestCall_CancelledContext verifies a cancelled context never reaches fn.
func TestCall_CancelledContext(t *testing.T) {
	cb := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn should not be called with a cancelled context")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateHalfOpen: "half_open",
		StateOpen:     "open",
		State(9):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

// TestCall_CallerCancellationDoesNotTrip verifies failures caused by the
// caller going away leave the circuit closed while upstream failures still
// count.
func TestCall_CallerCancellationDoesNotTrip(t *testing.T) {
	cb := New(Config{FailureThreshold: 2, Timeout: time.Hour, Component: "geocoding"})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		err := cb.Call(ctx, func() error {
			cancel()
			return ctx.Err()
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: err = %v, want context.Canceled", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := cb.Call(ctx, func() error {
		<-ctx.Done()
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("deadline call: err = %v, want errBoom", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v after caller cancellations, want closed", cb.State())
	}

	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func() error { return errBoom })
	}
	if cb.State() != StateOpen {
		t.Errorf("State() = %v after upstream failures, want open", cb.State())
	}
}
