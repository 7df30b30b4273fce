package meta

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// circuitState represents the state of a circuit breaker
type circuitState int

const (
	stateClosed   circuitState = iota // Normal operation
	stateOpen                         // Provider failing, calls are skipped
	stateHalfOpen                     // One trial call allowed
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// circuitBreaker tracks consecutive failures per oEmbed provider and stops
// calling providers that keep failing.
type circuitBreaker struct {
	failures         map[string]int
	lastFailure      map[string]time.Time
	state            map[string]circuitState
	lastStateLog     map[string]time.Time
	failureThreshold int
	openDuration     time.Duration
	now              func() time.Time
	mu               sync.Mutex
}

// newCircuitBreaker creates a circuit breaker with default settings
func newCircuitBreaker() *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: 3,               // Open after 3 consecutive failures
		openDuration:     5 * time.Minute, // Keep open for 5 minutes
		failures:         make(map[string]int),
		lastFailure:      make(map[string]time.Time),
		state:            make(map[string]circuitState),
		lastStateLog:     make(map[string]time.Time),
		now:              time.Now,
	}
}

// canAttempt reports whether provider may be called. An open circuit turns
// half-open once openDuration has passed since the last failure.
func (cb *circuitBreaker) canAttempt(provider string) (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.getState(provider) != stateOpen {
		return true, nil
	}

	lastFail := cb.lastFailure[provider]
	if cb.now().Sub(lastFail) > cb.openDuration {
		cb.state[provider] = stateHalfOpen
		cb.logStateChange(provider, stateHalfOpen)
		return true, nil
	}

	return false, fmt.Errorf(
		"%w for provider '%s' (failures: %d, next retry: %s)",
		ErrCircuitOpen,
		provider,
		cb.failures[provider],
		lastFail.Add(cb.openDuration).Format("15:04:05"),
	)
}

// recordSuccess resets the provider's failure count
func (cb *circuitBreaker) recordSuccess(provider string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.getState(provider)

	delete(cb.failures, provider)
	delete(cb.lastFailure, provider)
	cb.state[provider] = stateClosed

	if oldState != stateClosed {
		cb.logStateChange(provider, stateClosed)
	}
}

// recordFailure records a failed provider call
func (cb *circuitBreaker) recordFailure(provider string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures[provider]++
	cb.lastFailure[provider] = cb.now()

	failCount := cb.failures[provider]

	// A failed half-open trial reopens immediately.
	if failCount >= cb.failureThreshold || cb.getState(provider) == stateHalfOpen {
		oldState := cb.getState(provider)
		cb.state[provider] = stateOpen
		if oldState != stateOpen {
			log.Printf(
				"[OEMBED-CIRCUIT] Opening circuit for provider '%s' after %d consecutive failures. Last error: %v",
				provider,
				failCount,
				err,
			)
			cb.lastStateLog[provider] = cb.now()
		}
		return
	}

	log.Printf(
		"[OEMBED-CIRCUIT] Failure %d/%d for provider '%s': %v",
		failCount,
		cb.failureThreshold,
		provider,
		err,
	)
}

// getState returns the current state (must be called with lock held)
func (cb *circuitBreaker) getState(provider string) circuitState {
	if state, exists := cb.state[provider]; exists {
		return state
	}
	return stateClosed
}

// logStateChange logs state transitions (must be called with lock held)
// Debounced to at most once per minute per provider
func (cb *circuitBreaker) logStateChange(provider string, newState circuitState) {
	lastLog, exists := cb.lastStateLog[provider]
	if exists && cb.now().Sub(lastLog) < time.Minute {
		return
	}

	log.Printf("[OEMBED-CIRCUIT] Circuit for provider '%s' is now %s", provider, newState)
	cb.lastStateLog[provider] = cb.now()
}

// stats returns per-provider breaker state for the health endpoint
func (cb *circuitBreaker) stats() map[string]ProviderStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make(map[string]ProviderStats, len(cb.state))
	for provider, state := range cb.state {
		out[provider] = ProviderStats{
			State:       state.String(),
			Failures:    cb.failures[provider],
			LastFailure: cb.lastFailure[provider],
		}
	}
	for provider, n := range cb.failures {
		if _, ok := out[provider]; !ok {
			out[provider] = ProviderStats{State: stateClosed.String(), Failures: n, LastFailure: cb.lastFailure[provider]}
		}
	}
	return out
}

// ProviderStats describes one oEmbed provider's circuit.
type ProviderStats struct {
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"lastFailure,omitempty"`
}
