// Package circuitbreaker implements the circuit-breaker pattern guarding a
// single downstream call site (one instance per breaker key).
//
// State transitions:
//
//	Closed   → Open      when consecutive failures ≥ FailureThreshold
//	Open     → HalfOpen  after Timeout elapses
//	HalfOpen → Closed    on the probe call's success
//	HalfOpen → Open      on the probe call's failure
//
// HalfOpen allows exactly one call through at a time: Call reserves the
// single probe slot before invoking the wrapped function and releases it
// when the call returns, so concurrent callers racing a HalfOpen breaker
// never send more than one live probe downstream.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker's current state.
type State int

const (
	// StateClosed — normal operation; requests pass through.
	StateClosed State = iota
	// StateOpen — provider is considered failing; requests are rejected immediately.
	StateOpen
	// StateHalfOpen — circuit is testing recovery with a single in-flight probe.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open, or because a HalfOpen probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config configures a CircuitBreaker's thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Defaults to 5.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in HalfOpen
	// required to close the circuit. Defaults to 1.
	SuccessThreshold int
	// Timeout is how long the circuit stays Open before allowing a probe.
	// Defaults to 30s.
	Timeout time.Duration
}

// CircuitBreaker guards a single downstream call site.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	openUntil        time.Time
	probeInFlight    bool
}

// New creates a CircuitBreaker with the given config. Zero/negative fields
// fall back to their defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
	}
}

// State returns the current state, resolving an elapsed Open timeout to
// HalfOpen as a side effect.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.resolveState()
}

// resolveState must be called with cb.mu held.
func (cb *CircuitBreaker) resolveState() State {
	if cb.state == StateOpen && time.Now().After(cb.openUntil) {
		cb.state = StateHalfOpen
		cb.successCount = 0
		cb.probeInFlight = false
	}
	return cb.state
}

// reserve decides whether the caller may proceed, and if the breaker is
// HalfOpen, atomically reserves the single probe slot. Returns false (no
// reservation made) when the circuit is Open, or HalfOpen with a probe
// already in flight.
func (cb *CircuitBreaker) reserve() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.resolveState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	default: // StateOpen
		return false
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probeInFlight = false
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		cb.probeInFlight = false
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openUntil = time.Now().Add(cb.timeout)
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openUntil = time.Now().Add(cb.timeout)
		cb.successCount = 0
		cb.probeInFlight = false
	}
}

// Call runs fn through the breaker: it is rejected with ErrCircuitOpen
// without invoking fn when the circuit is Open, or HalfOpen with a probe
// already in flight. Otherwise fn is invoked and its result updates the
// breaker's state before being returned to the caller unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.reserve() {
		return ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

// Allow reports whether a call would currently be permitted, without
// reserving the HalfOpen probe slot. Intended for read-only inspection
// (health checks, metrics); Call is the only safe way to actually execute
// work behind the breaker.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.resolveState() == StateHalfOpen {
		return !cb.probeInFlight
	}
	return cb.state != StateOpen
}
