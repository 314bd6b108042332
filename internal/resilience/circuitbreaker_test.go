package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/hark/internal/resilience"
)

var errBackend = errors.New("backend exploded")

func TestCircuitBreaker_StaysClosedBelowThreshold(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 3,
	})

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("Execute() error = %v, want %v", err, errBackend)
		}
	}

	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() = %v, want %v", got, resilience.StateClosed)
	}
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 3,
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBackend })
	}

	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State() after %d failures = %v, want %v", 3, got, resilience.StateOpen)
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Execute() on open breaker error = %v, want %v", err, resilience.ErrCircuitOpen)
	}
	if called {
		t.Error("Execute() on open breaker invoked fn, want rejected without call")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 3,
	})

	// Two failures, one success, two more failures: never three in a row.
	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })

	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() = %v, want %v", got, resilience.StateClosed)
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errBackend })
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State() = %v, want %v", got, resilience.StateOpen)
	}

	time.Sleep(30 * time.Millisecond)

	if got := cb.State(); got != resilience.StateHalfOpen {
		t.Errorf("State() after reset timeout = %v, want %v", got, resilience.StateHalfOpen)
	}

	called := false
	if err := cb.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Errorf("Execute() probe error = %v, want nil", err)
	}
	if !called {
		t.Error("Execute() probe did not invoke fn")
	}
}

func TestCircuitBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
		HalfOpenMax:  2,
	})

	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(30 * time.Millisecond)

	// Failed probe re-opens immediately.
	_ = cb.Execute(func() error { return errBackend })

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Execute() after failed probe error = %v, want %v", err, resilience.ErrCircuitOpen)
	}
}

func TestCircuitBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: 20 * time.Millisecond,
		HalfOpenMax:  2,
	})

	_ = cb.Execute(func() error { return errBackend })
	time.Sleep(30 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("Execute() probe %d error = %v, want nil", i+1, err)
		}
	}

	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() after successful probes = %v, want %v", got, resilience.StateClosed)
	}
}

func TestCircuitBreaker_ResetForcesClosed(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 1,
	})

	_ = cb.Execute(func() error { return errBackend })
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State() = %v, want %v", got, resilience.StateOpen)
	}

	cb.Reset()

	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() after Reset = %v, want %v", got, resilience.StateClosed)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("Execute() after Reset error = %v, want nil", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
