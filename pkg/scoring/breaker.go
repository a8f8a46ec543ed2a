package scoring

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State enumerates the circuit breaker states.
type State int32

const (
	// StateClosed lets calls through.
	StateClosed State = iota
	// StateOpen rejects calls without network I/O.
	StateOpen
	// StateHalfOpen admits a single trial call after the recovery window.
	StateHalfOpen
)

// String returns the lowercase state name.
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

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Defaults to 5.
	FailureThreshold int64
	// RecoveryTimeout is how long the circuit stays open before a half-open
	// trial is allowed. Defaults to 60s.
	RecoveryTimeout time.Duration
}

// Breaker is the shared per-backend circuit breaker. One instance is
// constructed per scoring backend and passed by reference, so every
// concurrent evaluation observes the same state. All transitions use
// compare-and-set; there is no lock on the hot path.
type Breaker struct {
	name      string
	threshold int64
	recovery  time.Duration

	state    atomic.Int32
	failures atomic.Int64
	openedAt atomic.Int64

	now    func() time.Time
	logger zerolog.Logger
}

// NewBreaker constructs a breaker for the named backend.
func NewBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}

	return &Breaker{
		name:      name,
		threshold: cfg.FailureThreshold,
		recovery:  cfg.RecoveryTimeout,
		now:       time.Now,
		logger:    logger.With().Str("component", "circuit_breaker").Str("backend", name).Logger(),
	}
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// the circuit is open and admits exactly one caller as the half-open trial
// once the recovery window has elapsed.
func (b *Breaker) Allow() error {
	for {
		switch State(b.state.Load()) {
		case StateClosed:
			return nil
		case StateOpen:
			openedAt := time.Unix(0, b.openedAt.Load())
			if b.now().Sub(openedAt) < b.recovery {
				return ErrCircuitOpen
			}
			if b.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
				// Winning this swap is the trial slot. The swap happens once
				// per open cycle, so no second caller can be admitted.
				b.logTransition(StateOpen, StateHalfOpen)
				return nil
			}
		case StateHalfOpen:
			// A trial is in flight; everyone else fails fast until it
			// settles.
			return ErrCircuitOpen
		}
	}
}

// RecordSuccess resets the failure streak and closes a half-open circuit.
func (b *Breaker) RecordSuccess() {
	if State(b.state.Load()) == StateHalfOpen {
		if b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateClosed)) {
			b.failures.Store(0)
			b.logTransition(StateHalfOpen, StateClosed)
		}
		return
	}
	b.failures.Store(0)
}

// RecordFailure advances the failure streak, opening the circuit at the
// threshold. A failed half-open trial reopens it and resets the timer.
func (b *Breaker) RecordFailure() {
	switch State(b.state.Load()) {
	case StateHalfOpen:
		// The timer is armed before the swap so nobody can observe an open
		// circuit with a stale recovery deadline.
		b.openedAt.Store(b.now().UnixNano())
		if b.state.CompareAndSwap(int32(StateHalfOpen), int32(StateOpen)) {
			b.logTransition(StateHalfOpen, StateOpen)
		}
	case StateClosed:
		failures := b.failures.Add(1)
		if failures >= b.threshold {
			b.openedAt.Store(b.now().UnixNano())
			if b.state.CompareAndSwap(int32(StateClosed), int32(StateOpen)) {
				b.logTransition(StateClosed, StateOpen)
			}
		}
	case StateOpen:
		// No calls flow while open; nothing to record.
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

func (b *Breaker) logTransition(from, to State) {
	breakerTransitions().WithLabelValues(b.name, to.String()).Inc()
	b.logger.Warn().
		Str("from", from.String()).
		Str("to", to.String()).
		Int64("failures", b.failures.Load()).
		Msg("circuit breaker state changed")
}
