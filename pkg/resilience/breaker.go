package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"toolAdvisor/pkg/logger"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type BreakerConfig struct {
	// FailureThreshold consecutive failures inside MonitoringWindow open the circuit.
	FailureThreshold int `yaml:"failure_threshold"`
	// RecoveryTimeout is how long the circuit stays open before one trial call.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`
	// MonitoringWindow bounds how old a counted failure may be.
	MonitoringWindow time.Duration `yaml:"monitoring_window"`

	// OnStateChange runs synchronously, in transition order, while the breaker
	// lock is held. It must not call back into the breaker.
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringWindow: 60 * time.Second,
	}
}

type BreakerSnapshot struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	TotalFailures   int64     `json:"total_failures"`
	TotalSuccesses  int64     `json:"total_successes"`
	Rejected        int64     `json:"rejected"`
	LastStateChange time.Time `json:"last_state_change"`
}

type CircuitBreaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time

	mu              sync.Mutex
	state           State
	failures        []time.Time
	openedAt        time.Time
	trialInFlight   bool
	lastStateChange time.Time
	totalFailures   int64
	totalSuccesses  int64
	rejected        int64
}

func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = def.RecoveryTimeout
	}
	if cfg.MonitoringWindow <= 0 {
		cfg.MonitoringWindow = def.MonitoringWindow
	}
	return &CircuitBreaker{
		name:            name,
		cfg:             cfg,
		now:             time.Now,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// WithClock swaps the time source; used by tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
	cb.lastStateChange = now()
	return cb
}

// Ready reports whether a call would currently be admitted without taking
// the half-open trial slot.
func (cb *CircuitBreaker) Ready() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
			return nil
		}
		cb.rejected++
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.trialInFlight {
			cb.rejected++
			return ErrCircuitOpen
		}
	}
	return nil
}

// Allow admits a call. After RecoveryTimeout exactly one trial call is
// admitted; its outcome, reported through Record, decides the next state.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.RecoveryTimeout {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		return nil
	case StateHalfOpen:
		if cb.trialInFlight {
			cb.rejected++
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

// Record reports the outcome of an admitted call. nil marks success.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if err == nil {
		cb.totalSuccesses++
		switch cb.state {
		case StateHalfOpen:
			cb.trialInFlight = false
			cb.failures = cb.failures[:0]
			cb.setState(StateClosed)
		case StateClosed:
			cb.failures = cb.failures[:0]
		}
		return
	}

	cb.totalFailures++
	switch cb.state {
	case StateHalfOpen:
		cb.trialInFlight = false
		cb.openedAt = now
		cb.setState(StateOpen)
	case StateClosed:
		cb.failures = append(cb.pruned(now), now)
		if len(cb.failures) >= cb.cfg.FailureThreshold {
			cb.openedAt = now
			cb.setState(StateOpen)
		}
	}
}

// Execute runs fn under breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.Record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        len(cb.pruned(cb.now())),
		TotalFailures:   cb.totalFailures,
		TotalSuccesses:  cb.totalSuccesses,
		Rejected:        cb.rejected,
		LastStateChange: cb.lastStateChange,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	cb.trialInFlight = false
	cb.setState(StateClosed)
}

// pruned drops failures older than the monitoring window. Caller holds mu.
func (cb *CircuitBreaker) pruned(now time.Time) []time.Time {
	cutoff := now.Add(-cb.cfg.MonitoringWindow)
	i := 0
	for i < len(cb.failures) && cb.failures[i].Before(cutoff) {
		i++
	}
	cb.failures = cb.failures[i:]
	return cb.failures
}

func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.lastStateChange = cb.now()

	logger.Info("circuit_state_change",
		"breaker", cb.name,
		"from", from.String(),
		"to", to.String(),
	)

	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
