package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failingCall() error { return errBoom }
func okCall() error      { return nil }

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(failingCall); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State = %v, want open", got)
	}

	if err := cb.Execute(okCall); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open breaker should reject, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2})

	_ = cb.Execute(failingCall)
	_ = cb.Execute(okCall)
	_ = cb.Execute(failingCall)

	if got := cb.State(); got != StateClosed {
		t.Errorf("State = %v, want closed (success resets the streak)", got)
	}
}

func TestBreakerIgnoresCancelledCalls(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 2})

	cancelledCall := func() error {
		return fmt.Errorf("playback stopped: %w", context.Canceled)
	}
	for i := 0; i < 10; i++ {
		if err := cb.Execute(cancelledCall); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: err = %v, want context.Canceled", i, err)
		}
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State = %v, want closed (cancellations are not failures)", got)
	}
}

func TestBreakerCancelledProbeKeepsBudget(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
	})

	_ = cb.Execute(failingCall)
	time.Sleep(15 * time.Millisecond)

	// A cancelled probe neither closes nor re-opens; the slot is returned
	// so the next probe is still admitted.
	if err := cb.Execute(func() error { return context.DeadlineExceeded }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("probe err = %v", err)
	}
	if err := cb.Execute(okCall); err != nil {
		t.Fatalf("follow-up probe rejected: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State = %v, want closed", got)
	}
}

func TestBreakerHalfOpenAndClose(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	_ = cb.Execute(failingCall)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State = %v, want open", got)
	}

	time.Sleep(15 * time.Millisecond)
	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State after timeout = %v, want half-open", got)
	}

	// Two successful probes close the breaker.
	if err := cb.Execute(okCall); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if err := cb.Execute(okCall); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State after probes = %v, want closed", got)
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  3,
	})

	_ = cb.Execute(failingCall)
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(failingCall); !errors.Is(err, errBoom) {
		t.Fatalf("probe err = %v, want boom", err)
	}
	if got := cb.State(); got != StateOpen {
		t.Errorf("State after failed probe = %v, want open", got)
	}
	if err := cb.Execute(okCall); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("re-opened breaker should reject, got %v", err)
	}
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1})
	_ = cb.Execute(failingCall)
	if got := cb.State(); got != StateOpen {
		t.Fatalf("State = %v, want open", got)
	}

	cb.Reset()
	if got := cb.State(); got != StateClosed {
		t.Errorf("State after Reset = %v, want closed", got)
	}
	if err := cb.Execute(okCall); err != nil {
		t.Errorf("Execute after Reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	if StateClosed.String() != "closed" || StateOpen.String() != "open" || StateHalfOpen.String() != "half-open" {
		t.Error("State.String mismatch")
	}
	if State(42).String() != "unknown" {
		t.Error("unexpected String for invalid state")
	}
}
