package runner

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// catchUpWindow is the lateness the uniform pacer absorbs by firing overdue
// ticks back to back. Beyond it the loop is stalled and the overdue ticks are
// skipped.
const catchUpWindow = 10 * time.Millisecond

// pacer blocks until the next tick is due. It is used from the single tick
// loop of a Scheduler and need not be safe for concurrent use.
type pacer interface {
	// Wait returns the number of ticks skipped before the released one.
	Wait(ctx context.Context) (skipped int64, err error)
}

func newPacer(opt Options, perSecond float64) pacer {
	if opt.ArrivalModel == ArrivalModelPoisson {
		sample := opt.PoissonSampler
		if sample == nil {
			sample = rand.New(rand.NewSource(opt.RandomSeed)).ExpFloat64
		}
		return &poissonPacer{perSecond: perSecond, sample: sample}
	}
	return newUniformPacer(perSecond, opt.Clock)
}

// uniformPacer releases tick n at start + n*interval. Lateness up to
// max(interval, catchUpWindow) is made up; a longer stall skips the overdue
// ticks instead of bursting them.
type uniformPacer struct {
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	next     time.Time
}

func newUniformPacer(perSecond float64, clock func() time.Time) *uniformPacer {
	interval := time.Duration(math.Max(1, float64(time.Second)/perSecond))
	window := catchUpWindow
	if interval > window {
		window = interval
	}
	if clock == nil {
		clock = time.Now
	}
	return &uniformPacer{interval: interval, window: window, now: clock}
}

func (u *uniformPacer) Wait(ctx context.Context) (int64, error) {
	now := u.now()
	if u.next.IsZero() {
		u.next = now
	}

	var skipped int64
	if lag := now.Sub(u.next); lag > u.window {
		skipped = int64(lag / u.interval)
		// Ticks due after the deadline were never owed.
		if dl, ok := ctx.Deadline(); ok && now.After(dl) {
			skipped = min(skipped, ticksBefore(dl.Sub(u.next), u.interval))
		}
		u.next = u.next.Add(time.Duration(skipped) * u.interval)
	}
	due := u.next
	u.next = due.Add(u.interval)

	if err := sleep(ctx, due.Sub(now)); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// ticksBefore counts ticks at 0, interval, 2*interval, ... strictly before span.
func ticksBefore(span, interval time.Duration) int64 {
	if span <= 0 {
		return 0
	}
	return int64((span-1)/interval) + 1
}

// poissonPacer draws exponential gaps with mean 1/perSecond.
type poissonPacer struct {
	perSecond float64
	sample    func() float64
}

func (p *poissonPacer) Wait(ctx context.Context) (int64, error) {
	return 0, sleep(ctx, p.nextDelay())
}

func (p *poissonPacer) nextDelay() time.Duration {
	if p.perSecond <= 0 {
		return 0
	}
	delay := float64(time.Second) * p.sample() / p.perSecond
	if delay >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
