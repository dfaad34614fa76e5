package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestFallbackGroupPrefersPrimary(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{})
	fg.AddFallback("backup", "backup")

	var used string
	err := fg.Execute(func(v string) error {
		used = v
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "primary" {
		t.Errorf("used = %q, want primary", used)
	}
}

func TestFallbackGroupFailsOver(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{})
	fg.AddFallback("backup", "backup")

	var attempts []string
	err := fg.Execute(func(v string) error {
		attempts = append(attempts, v)
		if v == "primary" {
			return errors.New("primary down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != "primary" || attempts[1] != "backup" {
		t.Errorf("attempts = %v, want [primary backup]", attempts)
	}
}

func TestFallbackGroupAllFailed(t *testing.T) {
	fg := NewFallbackGroup("a", "a", FallbackConfig{})
	fg.AddFallback("b", "b")

	err := fg.Execute(func(v string) error { return errors.New(v + " down") })
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupPreservesErrorChain(t *testing.T) {
	fg := NewFallbackGroup("a", "a", FallbackConfig{})

	err := fg.Execute(func(string) error {
		return fmt.Errorf("stream aborted: %w", context.Canceled)
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled still detectable", err)
	}
}

func TestFallbackGroupSkipsOpenBreaker(t *testing.T) {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fg.AddFallback("backup", "backup")

	// Trip the primary's breaker.
	_ = fg.Execute(func(v string) error {
		if v == "primary" {
			return errors.New("down")
		}
		return nil
	})

	var attempts []string
	err := fg.Execute(func(v string) error {
		attempts = append(attempts, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(attempts) != 1 || attempts[0] != "backup" {
		t.Errorf("attempts = %v, want only backup while primary breaker is open", attempts)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := NewFallbackGroup(1, "one", FallbackConfig{})
	fg.AddFallback("two", 2)

	got, err := ExecuteWithResult(fg, func(v int) (string, error) {
		if v == 1 {
			return "", errors.New("nope")
		}
		return "from two", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "from two" {
		t.Errorf("result = %q, want %q", got, "from two")
	}
}
