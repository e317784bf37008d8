// Package resilience wraps calls to unreliable collaborators with bounded
// retries and circuit breaking.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets calls through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout passes.
	CircuitOpen
	// CircuitHalfOpen lets trial calls through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned for calls rejected by an open circuit.
var ErrCircuitOpen = eris.New("resilience: circuit breaker is open")

// CircuitBreakerConfig controls a CircuitBreaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration

	// HalfOpenMaxTrials is the number of successful trial calls that close it.
	HalfOpenMaxTrials int

	// ShouldTrip decides which errors count as failures. Nil counts all
	// errors except caller cancellation.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default breaker settings.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		ResetTimeout:      30 * time.Second,
		HalfOpenMaxTrials: 1,
	}
}

// CircuitBreaker guards one collaborator operation.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenSuccesses   int

	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	d := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = d.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = d.ResetTimeout
	}
	if cfg.HalfOpenMaxTrials <= 0 {
		cfg.HalfOpenMaxTrials = d.HalfOpenMaxTrials
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteVal is Execute with a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// State returns the current state, reporting half-open once an open
// circuit's reset timeout has passed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFailures
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.transition(CircuitHalfOpen)
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	trips := cb.cfg.ShouldTrip
	if trips == nil {
		trips = func(e error) bool { return !errors.Is(e, context.Canceled) }
	}

	if err == nil || !trips(err) {
		switch cb.state {
		case CircuitHalfOpen:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.cfg.HalfOpenMaxTrials {
				cb.consecutiveFailures = 0
				cb.halfOpenSuccesses = 0
				cb.transition(CircuitClosed)
			}
		case CircuitClosed:
			cb.consecutiveFailures = 0
		}
		return
	}

	cb.consecutiveFailures++
	switch cb.state {
	case CircuitClosed:
		if cb.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.halfOpenSuccesses = 0
		cb.openedAt = cb.now()
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// Breakers holds one circuit breaker per named operation.
type Breakers struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	breakers map[string]*CircuitBreaker
}

// NewBreakers creates an empty set sharing cfg.
func NewBreakers(cfg CircuitBreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for operation, creating it on first use.
func (b *Breakers) Get(operation string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.breakers[operation]
	if !ok {
		cb = NewCircuitBreaker(b.cfg)
		b.breakers[operation] = cb
	}
	return cb
}

// States returns a snapshot of every breaker's state.
func (b *Breakers) States() map[string]CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]CircuitState, len(b.breakers))
	for name, cb := range b.breakers {
		out[name] = cb.State()
	}
	return out
}
