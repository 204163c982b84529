package bulk

import (
	"sync"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// BreakerState is the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the state name
func (s BreakerState) String() string {
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

// Breaker defaults
const (
	DefaultFailureThreshold = 5
	DefaultRecoveryTimeout  = 30 * time.Second
)

// CircuitBreaker stops issuing panel calls after consecutive failures.
// Half-open admits a single probe; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	mu sync.Mutex

	scope            string
	failureThreshold int
	recoveryTimeout  time.Duration
	clock            clock.Clock
	logger           *logger.Logger

	state         BreakerState
	failures      int
	lastFailure   time.Time
	probeInFlight bool
}

// NewCircuitBreaker creates a closed breaker. scope labels logs and metrics.
func NewCircuitBreaker(scope string, threshold int, recovery time.Duration, clk clock.Clock, log *logger.Logger) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if recovery <= 0 {
		recovery = DefaultRecoveryTimeout
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &CircuitBreaker{
		scope:            scope,
		failureThreshold: threshold,
		recoveryTimeout:  recovery,
		clock:            clk,
		logger:           log.With("breaker", scope),
	}
	metrics.SetBreakerState(scope, StateClosed.String(), float64(StateClosed))
	return b
}

// CanExecute reports whether a call may be issued now
func (b *CircuitBreaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.lastFailure) < b.recoveryTimeout {
			return false
		}
		b.toHalfOpen()
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// RecordSuccess resets the failure streak and closes a half-open circuit
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.toClosed()
	}
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// reopening it when the half-open probe fails.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.clock.Now()

	switch b.state {
	case StateHalfOpen:
		b.toOpen()
	case StateClosed:
		if b.failures >= b.failureThreshold {
			b.toOpen()
		}
	}
}

// releaseProbe frees the half-open slot taken by a call that was admitted
// but never issued.
func (b *CircuitBreaker) releaseProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

// State returns the current state
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive failure count
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the circuit and clears the streak
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastFailure = time.Time{}
	if b.state != StateClosed {
		b.toClosed()
	}
}

func (b *CircuitBreaker) toOpen() {
	b.transition(StateOpen)
	b.probeInFlight = false
	b.logger.WithFields(map[string]interface{}{
		"failures": b.failures,
		"retry_in": b.recoveryTimeout.String(),
	}).Warn("Circuit breaker opened")
}

func (b *CircuitBreaker) toHalfOpen() {
	b.transition(StateHalfOpen)
	b.logger.Info("Circuit breaker half-open, probing")
}

func (b *CircuitBreaker) toClosed() {
	b.transition(StateClosed)
	b.probeInFlight = false
	b.logger.Info("Circuit breaker closed")
}

func (b *CircuitBreaker) transition(to BreakerState) {
	b.state = to
	metrics.SetBreakerState(b.scope, to.String(), float64(to))
}
