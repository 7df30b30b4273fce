package meta

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreaker_Basic(t *testing.T) {
	cb := newCircuitBreaker()

	provider := "test-provider"

	// Should start closed (allow attempts)
	canAttempt, err := cb.canAttempt(provider)
	if !canAttempt {
		t.Errorf("Expected circuit to be closed initially, but got error: %v", err)
	}

	cb.recordSuccess(provider)
	canAttempt, _ = cb.canAttempt(provider)
	if !canAttempt {
		t.Error("Expected circuit to remain closed after success")
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := newCircuitBreaker()
	provider := "failing-provider"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(provider, fmt.Errorf("test error %d", i))
	}

	canAttempt, err := cb.canAttempt(provider)
	if canAttempt {
		t.Error("Expected circuit to be open after threshold failures")
	}
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_RecoveryAfterSuccess(t *testing.T) {
	cb := newCircuitBreaker()
	provider := "recovery-provider"

	cb.recordFailure(provider, fmt.Errorf("error 1"))
	cb.recordFailure(provider, fmt.Errorf("error 2"))

	// Success resets the failure count
	cb.recordSuccess(provider)

	canAttempt, err := cb.canAttempt(provider)
	if !canAttempt {
		t.Errorf("Expected circuit to be closed after success, but got error: %v", err)
	}
	if count := cb.failures[provider]; count != 0 {
		t.Errorf("Expected failure count to be reset to 0, got %d", count)
	}
}

func TestCircuitBreaker_HalfOpenTransition(t *testing.T) {
	cb := newCircuitBreaker()
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return current }
	provider := "half-open-provider"

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure(provider, fmt.Errorf("error %d", i))
	}
	if canAttempt, _ := cb.canAttempt(provider); canAttempt {
		t.Fatal("Expected circuit to be open")
	}

	current = current.Add(cb.openDuration + time.Second)

	canAttempt, err := cb.canAttempt(provider)
	if !canAttempt {
		t.Fatalf("Expected half-open circuit to allow a trial, got error: %v", err)
	}
	if state := cb.getState(provider); state != stateHalfOpen {
		t.Errorf("Expected half-open state, got %s", state)
	}

	// A failed trial reopens immediately.
	cb.recordFailure(provider, fmt.Errorf("trial failed"))
	if canAttempt, _ := cb.canAttempt(provider); canAttempt {
		t.Error("Expected circuit to reopen after failed trial")
	}
}

func TestCircuitBreaker_IsolatedPerProvider(t *testing.T) {
	cb := newCircuitBreaker()

	for i := 0; i < cb.failureThreshold; i++ {
		cb.recordFailure("bad", fmt.Errorf("error %d", i))
	}

	if canAttempt, _ := cb.canAttempt("good"); !canAttempt {
		t.Error("Expected unrelated provider to remain closed")
	}

	stats := cb.stats()
	if stats["bad"].State != "open" {
		t.Errorf("Expected bad provider open, got %q", stats["bad"].State)
	}
	if stats["bad"].Failures != cb.failureThreshold {
		t.Errorf("Expected %d failures, got %d", cb.failureThreshold, stats["bad"].Failures)
	}
}
