package clients

import (
	"sync"
	"time"
)

// State is the position of a CircuitBreaker.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen rejects requests until the cool-down elapses.
	StateOpen

	// StateHalfOpen admits a limited number of probes.
	StateHalfOpen
)

var stateNames = map[State]string{
	StateClosed:   "closed",
	StateOpen:     "open",
	StateHalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}

	return "unknown"
}

// CircuitBreakerConfig configures a CircuitBreaker. Zero values take the
// package defaults.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int

	// Timeout is the cool-down before an open circuit admits a probe.
	Timeout time.Duration

	// HalfOpenLimit successful probes close the circuit. It also caps the
	// probes in flight.
	HalfOpenLimit int
}

const (
	defaultCircuitMaxFailures   = 5
	defaultCircuitTimeout       = 30 * time.Second
	defaultCircuitHalfOpenLimit = 1
)

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.MaxFailures < 1 {
		c.MaxFailures = defaultCircuitMaxFailures
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultCircuitTimeout
	}

	if c.HalfOpenLimit < 1 {
		c.HalfOpenLimit = defaultCircuitHalfOpenLimit
	}

	return c
}

// Counts is a point-in-time view of a CircuitBreaker.
type Counts struct {
	State               State
	ConsecutiveFailures int
	ProbeSuccesses      int
	ProbesInFlight      int

	// OpenUntil is when an open circuit will admit its next probe. It is
	// zero unless State is StateOpen.
	OpenUntil time.Time
}

// StateListener observes circuit transitions.
type StateListener func(from, to State)

// CircuitBreaker keeps webhook deliveries from piling up behind a receiver
// that is down. It opens after MaxFailures consecutive failures, admits
// probes once Timeout has passed, and closes again after HalfOpenLimit
// successful probes. A failed probe reopens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	counts   Counts
	listener StateListener
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg: cfg.withDefaults(),
		now: time.Now,
	}
}

// OnStateChange registers fn to be called after each transition. It runs on
// the goroutine that caused the transition, outside the breaker's lock.
func (cb *CircuitBreaker) OnStateChange(fn StateListener) {
	cb.mu.Lock()
	cb.listener = fn
	cb.mu.Unlock()
}

// Allow reports whether a request may proceed. Every true result must be
// followed by RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	var (
		allowed bool
		moved   func()
	)

	switch cb.counts.State {
	case StateClosed:
		allowed = true
	case StateOpen:
		if !cb.now().Before(cb.counts.OpenUntil) {
			moved = cb.setState(StateHalfOpen)
			cb.counts.ProbesInFlight = 1
			allowed = true
		}
	case StateHalfOpen:
		if cb.counts.ProbesInFlight < cb.cfg.HalfOpenLimit {
			cb.counts.ProbesInFlight++
			allowed = true
		}
	}

	cb.mu.Unlock()
	notify(moved)

	return allowed
}

// RecordSuccess reports a request that reached the receiver.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var moved func()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		cb.releaseProbe()
		cb.counts.ProbeSuccesses++

		if cb.counts.ProbeSuccesses >= cb.cfg.HalfOpenLimit {
			moved = cb.setState(StateClosed)
		}
	}

	cb.mu.Unlock()
	notify(moved)
}

// RecordFailure reports a request that did not reach the receiver.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	var moved func()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.ConsecutiveFailures++

		if cb.counts.ConsecutiveFailures >= cb.cfg.MaxFailures {
			moved = cb.setState(StateOpen)
		}
	case StateHalfOpen:
		moved = cb.setState(StateOpen)
	case StateOpen:
		// A request admitted before the circuit opened; extend the cool-down.
		cb.counts.OpenUntil = cb.now().Add(cb.cfg.Timeout)
	}

	cb.mu.Unlock()
	notify(moved)
}

// State returns the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts.State
}

// Snapshot returns a copy of the current counts.
func (cb *CircuitBreaker) Snapshot() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// setState resets the counts for the new state and returns the listener
// call to run once the lock is released. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(to State) func() {
	from := cb.counts.State
	if from == to {
		return nil
	}

	cb.counts = Counts{State: to}
	if to == StateOpen {
		cb.counts.OpenUntil = cb.now().Add(cb.cfg.Timeout)
	}

	if cb.listener == nil {
		return nil
	}

	fn := cb.listener

	return func() { fn(from, to) }
}

// releaseProbe frees a probe slot. Requests admitted while the circuit was
// still closed may finish after it moved, so the count never goes negative.
func (cb *CircuitBreaker) releaseProbe() {
	if cb.counts.ProbesInFlight > 0 {
		cb.counts.ProbesInFlight--
	}
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
