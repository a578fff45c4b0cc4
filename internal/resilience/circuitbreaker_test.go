package resilience

import (
	"errors"
	"testing"
	"time"
)

var errProbe = errors.New("probe failed")

func TestDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "llm"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 3 {
		t.Errorf("halfOpenMax = %d, want 3", cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v", cb.State())
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "supervisor",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errProbe })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "supervisor", MaxFailures: 3})

	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
}

func TestHalfOpenProbesCloseTheBreaker(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "supervisor",
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })
	time.Sleep(15 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", cb.State())
	}
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after probes", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "supervisor",
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })
	time.Sleep(15 * time.Millisecond)

	if err := cb.Execute(func() error { return errProbe }); err == nil {
		t.Fatal("expected error from failing probe")
	}

	cb.mu.Lock()
	s := cb.state
	cb.mu.Unlock()
	if s != StateOpen {
		t.Fatalf("state = %v, want open after half-open failure", s)
	}
}

func TestStateChangeNotifications(t *testing.T) {
	type change struct{ from, to State }
	var changes []change

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "gemini-cli",
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  1,
		OnStateChange: func(name string, from, to State) {
			if name != "gemini-cli" {
				t.Errorf("name = %q", name)
			}
			changes = append(changes, change{from, to})
		},
	})

	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })
	time.Sleep(15 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })

	want := []change{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}
	if len(changes) != len(want) {
		t.Fatalf("recorded %d transitions, want %d: %v", len(changes), len(want), changes)
	}
	for i, c := range changes {
		if c != want[i] {
			t.Errorf("transition %d = %v, want %v", i, c, want[i])
		}
	}
}

func TestManualReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "supervisor",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})

	_ = cb.Execute(func() error { return errProbe })
	_ = cb.Execute(func() error { return errProbe })
	cb.Reset()

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("execute after reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(99):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
