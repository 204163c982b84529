package bulk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
)

func newTestBreaker(threshold int, recovery time.Duration) (*CircuitBreaker, *clock.Fake) {
	fc := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewCircuitBreaker("test", threshold, recovery, fc, nil), fc
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, 30*time.Second)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.CanExecute())
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 3, b.Failures())
	assert.False(t, b.CanExecute())
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	b, _ := newTestBreaker(3, 30*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 0, b.Failures())

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestCircuitBreaker_RecoveryTiming(t *testing.T) {
	b, fc := newTestBreaker(5, 30*time.Second)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	fc.Advance(29 * time.Second)
	assert.False(t, b.CanExecute(), "still open before recovery timeout")
	assert.Equal(t, StateOpen, b.State())

	fc.Advance(time.Second)
	assert.True(t, b.CanExecute(), "probe admitted after recovery timeout")
	assert.Equal(t, StateHalfOpen, b.State())
	assert.False(t, b.CanExecute(), "only one probe while half-open")

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())
	assert.True(t, b.CanExecute())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	b, fc := newTestBreaker(2, 10*time.Second)

	b.RecordFailure()
	b.RecordFailure()
	fc.Advance(10 * time.Second)
	require.True(t, b.CanExecute())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.CanExecute())

	fc.Advance(9 * time.Second)
	assert.False(t, b.CanExecute())
	fc.Advance(time.Second)
	assert.True(t, b.CanExecute())
}

func TestCircuitBreaker_ReleaseProbe(t *testing.T) {
	b, fc := newTestBreaker(1, time.Second)

	b.RecordFailure()
	fc.Advance(time.Second)
	require.True(t, b.CanExecute())
	require.False(t, b.CanExecute())

	b.releaseProbe()
	assert.True(t, b.CanExecute(), "released slot can be taken again")
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	b := NewCircuitBreaker("defaults", 0, 0, nil, nil)
	assert.Equal(t, DefaultFailureThreshold, b.failureThreshold)
	assert.Equal(t, DefaultRecoveryTimeout, b.recoveryTimeout)
	assert.Equal(t, StateClosed, b.State())

	b.RecordFailure()
	b.Reset()
	assert.Equal(t, 0, b.Failures())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
