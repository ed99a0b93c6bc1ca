package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"digital-clone/frontend/pkg/logger"
)

// ErrOpen is returned without calling the guarded function while the circuit is open
var ErrOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed means requests pass through
	StateClosed State = "closed"
	// StateOpen means requests are short-circuited
	StateOpen State = "open"
	// StateHalfOpen means a limited number of trial requests pass through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
	// IsFailure decides whether an error counts against the circuit.
	// Nil counts every error.
	IsFailure func(error) bool
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// Stats is a point-in-time view of breaker counters
type Stats struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	TotalRequests   uint64    `json:"total_requests"`
	TotalFailures   uint64    `json:"total_failures"`
	TotalSuccesses  uint64    `json:"total_successes"`
	Rejected        uint64    `json:"rejected"`
	OpenCount       uint64    `json:"open_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// CircuitBreaker guards calls to a flaky dependency
type CircuitBreaker struct {
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	mutex sync.Mutex

	state           State
	failureCount    uint
	successCount    uint
	inFlightTrials  uint
	nextAttemptTime time.Time
	stats           Stats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
		stats: Stats{Name: cfg.Name},
	}
}

// Execute runs fn through the circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allowRequest() {
		cb.log.Warn("Circuit breaker preventing request", "name", cb.cfg.Name)
		return ErrOpen
	}

	start := cb.now()
	err := fn(ctx)

	if err != nil && cb.countsAsFailure(err) {
		cb.recordFailure()
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
		return err
	}

	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if cb.cfg.IsFailure == nil {
		return true
	}
	return cb.cfg.IsFailure(err)
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if !cb.now().After(cb.nextAttemptTime) {
			cb.stats.Rejected++
			return false
		}
		cb.toHalfOpen()
		fallthrough

	case StateHalfOpen:
		if cb.successCount+cb.inFlightTrials >= cb.cfg.SuccessThreshold {
			cb.stats.Rejected++
			return false
		}
		cb.inFlightTrials++
	}

	cb.stats.TotalRequests++
	return true
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0

	case StateHalfOpen:
		cb.inFlightTrials--
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalFailures++
	cb.stats.LastFailureTime = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.toOpen()
		}

	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.inFlightTrials = 0
	cb.stats.OpenCount++
	cb.nextAttemptTime = cb.now().Add(cb.cfg.RetryTimeout)

	cb.log.Info("Circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failureCount,
		"next_attempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.inFlightTrials = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.inFlightTrials = 0

	cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return cb.state
}

// Stats returns the current counters of the circuit breaker
func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	s := cb.stats
	s.State = cb.state
	return s
}
