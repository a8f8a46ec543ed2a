package scoring

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, cfg BreakerConfig) (*Breaker, *time.Time) {
	t.Helper()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b := NewBreaker("content", cfg, zerolog.Nop())
	b.now = func() time.Time { return now }

	return b, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 5, RecoveryTimeout: time.Minute})

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	require.Equal(t, StateClosed, b.State(), "four failures must not open the circuit")

	require.NoError(t, b.Allow())
	b.RecordFailure()

	require.Equal(t, StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerSuccessResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	require.Equal(t, StateClosed, b.State(), "streak must reset on success")

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
}

func TestBreakerHalfOpenAdmitsSingleTrial(t *testing.T) {
	b, now := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	*now = now.Add(59 * time.Second)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen, "recovery window has not elapsed")

	*now = now.Add(2 * time.Second)
	require.NoError(t, b.Allow(), "first caller after recovery becomes the trial")
	require.Equal(t, StateHalfOpen, b.State())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen, "only one trial may fly")
}

func TestBreakerTrialSuccessCloses(t *testing.T) {
	b, now := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	*now = now.Add(61 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordSuccess()
	require.Equal(t, StateClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestBreakerTrialFailureReopensAndResetsTimer(t *testing.T) {
	b, now := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	*now = now.Add(61 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	*now = now.Add(30 * time.Second)
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen, "reopening must restart the recovery window")

	*now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())
}

func TestBreakerConcurrentTrialExclusion(t *testing.T) {
	b, now := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	*now = now.Add(2 * time.Minute)

	admitted := 0
	results := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() { results <- b.Allow() }()
	}
	for i := 0; i < 8; i++ {
		if err := <-results; err == nil {
			admitted++
		}
	}

	require.Equal(t, 1, admitted, "exactly one goroutine may run the half-open trial")
}

func TestBreakerAdmitsOneTrialPerRecoveryWindow(t *testing.T) {
	b, now := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	b.RecordFailure()
	*now = now.Add(61 * time.Second)

	// Cycle through failed trials: every reopened window must still admit
	// exactly one caller, no matter how many race for the slot.
	for cycle := 0; cycle < 3; cycle++ {
		admitted := 0
		results := make(chan error, 6)
		for i := 0; i < 6; i++ {
			go func() { results <- b.Allow() }()
		}
		for i := 0; i < 6; i++ {
			if err := <-results; err == nil {
				admitted++
			}
		}
		require.Equal(t, 1, admitted, "one trial per recovery window")

		b.RecordFailure()
		require.Equal(t, StateOpen, b.State())
		*now = now.Add(61 * time.Second)
	}
}
