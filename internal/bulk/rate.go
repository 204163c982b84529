package bulk

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// Rate controller tuning
const (
	DefaultMinDelay      = 50 * time.Millisecond
	DefaultMaxDelay      = 5 * time.Second
	successFactor        = 0.95
	failureFactor        = 1.2
	streakDoubleDelayMin = 2
)

// RateController holds the adaptive delay slept before every panel call
type RateController struct {
	mu    sync.Mutex
	scope string
	delay time.Duration
	min   time.Duration
	max   time.Duration
	clock clock.Clock
}

// NewRateController creates a controller starting at initial, clamped to [min, max]
func NewRateController(scope string, initial, min, max time.Duration, clk clock.Clock) *RateController {
	if min <= 0 {
		min = DefaultMinDelay
	}
	if max < min {
		max = DefaultMaxDelay
	}
	if clk == nil {
		clk = clock.Real{}
	}
	r := &RateController{scope: scope, min: min, max: max, clock: clk}
	r.delay = r.clamp(initial)
	metrics.SetRateDelay(scope, r.delay)
	return r
}

// Delay returns the current delay
func (r *RateController) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// Wait sleeps the current delay, twice as long while the failure streak is
// above two. It returns early with ctx's error on cancellation.
func (r *RateController) Wait(ctx context.Context, failureStreak int) error {
	d := r.Delay()
	if failureStreak > streakDoubleDelayMin {
		d *= 2
	}
	return r.clock.Sleep(ctx, d)
}

// OnSuccess shrinks the delay
func (r *RateController) OnSuccess() {
	r.scale(successFactor)
}

// OnFailure grows the delay
func (r *RateController) OnFailure() {
	r.scale(failureFactor)
}

func (r *RateController) scale(f float64) {
	r.mu.Lock()
	r.delay = r.clamp(time.Duration(math.Round(float64(r.delay) * f)))
	d := r.delay
	r.mu.Unlock()
	metrics.SetRateDelay(r.scope, d)
}

func (r *RateController) clamp(d time.Duration) time.Duration {
	if d < r.min {
		return r.min
	}
	if d > r.max {
		return r.max
	}
	return d
}
