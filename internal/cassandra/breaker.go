package cassandra

import (
	"sync"
	"time"
)

// BreakerState is the three-state failure gate a CircuitBreaker moves
// through: Closed (requests flow normally), Open (requests are
// rejected outright), HalfOpen (a trial batch is let through to decide
// whether to return to Closed).
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Closed"
	}
}

// CircuitBreakerOptions configures a per-host CircuitBreaker.
type CircuitBreakerOptions struct {
	FailureThreshold           int
	OpenDuration               time.Duration
	SuccessThresholdInHalfOpen int
}

// DefaultCircuitBreakerOptions returns the spec's documented defaults.
func DefaultCircuitBreakerOptions() CircuitBreakerOptions {
	return CircuitBreakerOptions{
		FailureThreshold:           5,
		OpenDuration:               30 * time.Second,
		SuccessThresholdInHalfOpen: 2,
	}
}

// CircuitBreaker is a per-host failure gate. All state transitions
// happen under its own mutex; it never reaches outside itself to
// touch the host map, the executor, or metrics.
type CircuitBreaker struct {
	mu sync.Mutex

	opts CircuitBreakerOptions

	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
}

// NewCircuitBreaker creates a breaker in the Closed state using the
// given options, falling back to defaults for zero-valued fields.
func NewCircuitBreaker(opts CircuitBreakerOptions) *CircuitBreaker {
	defaults := DefaultCircuitBreakerOptions()
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = defaults.FailureThreshold
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = defaults.OpenDuration
	}
	if opts.SuccessThresholdInHalfOpen <= 0 {
		opts.SuccessThresholdInHalfOpen = defaults.SuccessThresholdInHalfOpen
	}
	return &CircuitBreaker{opts: opts, state: BreakerClosed}
}

// RecordSuccess advances a HalfOpen breaker toward Closed and resets
// the failure counter of a Closed breaker. It has no effect on an Open
// breaker (the caller should not be issuing traffic to it in the first
// place).
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.consecutiveFailures = 0
	case BreakerHalfOpen:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.opts.SuccessThresholdInHalfOpen {
			cb.state = BreakerClosed
			cb.consecutiveFailures = 0
			cb.consecutiveSuccesses = 0
		}
	}
}

// RecordFailure increments the relevant counter and opens the breaker
// when the threshold is reached (Closed) or immediately (HalfOpen).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.opts.FailureThreshold {
			cb.state = BreakerOpen
			cb.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.openedAt = time.Now()
		cb.consecutiveSuccesses = 0
	}
}

// CheckState returns the breaker's current state, first promoting an
// Open breaker to HalfOpen if openDuration has elapsed. Callers that
// need to decide whether to route traffic to the host should call this
// rather than reading state directly.
func (cb *CircuitBreaker) CheckState() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && time.Since(cb.openedAt) > cb.opts.OpenDuration {
		cb.state = BreakerHalfOpen
		cb.consecutiveSuccesses = 0
	}
	return cb.state
}

// State returns the breaker's state without the Open->HalfOpen timer
// check CheckState performs; use for read-only reporting (metrics,
// diagnostics) where triggering a transition as a side effect of a
// read would be surprising.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to Closed with zeroed counters. Used
// on an observed host up-transition (§4.2) regardless of prior state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.openedAt = time.Time{}
}
