package runner

import (
	"context"
	"testing"
	"time"
)

func TestPoissonPacerDelayScalesWithRate(t *testing.T) {
	tests := []struct {
		perSecond float64
		sample    float64
		want      time.Duration
	}{
		{200, 1, 5 * time.Millisecond},
		{10, 0.5, 50 * time.Millisecond},
		{1, 2, 2 * time.Second},
		{0, 1, 0},
	}
	for _, tt := range tests {
		p := &poissonPacer{perSecond: tt.perSecond, sample: func() float64 { return tt.sample }}
		if got := p.nextDelay(); got != tt.want {
			t.Errorf("nextDelay(rate=%v, sample=%v) = %s, want %s", tt.perSecond, tt.sample, got, tt.want)
		}
	}
}

func TestPoissonPacerWaitCancelled(t *testing.T) {
	p := &poissonPacer{perSecond: 0.000001, sample: func() float64 { return 1 }}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Wait(ctx); err == nil {
		t.Fatal("expected context error when cancelled")
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestNewPacerUniformInterval(t *testing.T) {
	tests := []struct {
		perSecond    float64
		wantInterval time.Duration
		wantWindow   time.Duration
	}{
		{20, 50 * time.Millisecond, 50 * time.Millisecond},
		{1000, time.Millisecond, catchUpWindow},
		{5000, 200 * time.Microsecond, catchUpWindow},
	}
	for _, tt := range tests {
		opt := Options{}
		opt.normalize()
		p, ok := newPacer(opt, tt.perSecond).(*uniformPacer)
		if !ok {
			t.Fatalf("rate %v: expected uniform pacer", tt.perSecond)
		}
		if p.interval != tt.wantInterval || p.window != tt.wantWindow {
			t.Errorf("rate %v: interval/window = %s/%s, want %s/%s",
				tt.perSecond, p.interval, p.window, tt.wantInterval, tt.wantWindow)
		}
	}
}

func TestUniformPacerFollowsAbsoluteTimeline(t *testing.T) {
	base := time.Now()
	clock := &fakeClock{now: base}
	p := newUniformPacer(100, clock.Now) // 10ms interval and window
	ctx := context.Background()

	steps := []struct {
		at          time.Duration
		wantSkipped int64
		wantNext    time.Duration
	}{
		{0, 0, 10 * time.Millisecond},                       // first tick fires at once
		{10 * time.Millisecond, 0, 20 * time.Millisecond},   // on time
		{25 * time.Millisecond, 0, 30 * time.Millisecond},   // 5ms late: made up, not lost
		{25 * time.Millisecond, 0, 40 * time.Millisecond},   // early: sleeps until 30ms
		{100 * time.Millisecond, 6, 110 * time.Millisecond}, // stalled 60ms: overdue ticks skipped
		{110 * time.Millisecond, 0, 120 * time.Millisecond},
	}
	for i, step := range steps {
		clock.now = base.Add(step.at)
		skipped, err := p.Wait(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if skipped != step.wantSkipped {
			t.Errorf("step %d: skipped = %d, want %d", i, skipped, step.wantSkipped)
		}
		if got := p.next.Sub(base); got != step.wantNext {
			t.Errorf("step %d: next tick at %s, want %s", i, got, step.wantNext)
		}
	}
}

func TestUniformPacerNeverSkipsPastDeadline(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	clock := &fakeClock{now: base}
	p := newUniformPacer(100, clock.Now)
	p.next = base

	ctx, cancel := context.WithDeadline(context.Background(), base.Add(25*time.Millisecond))
	defer cancel()

	clock.Advance(100 * time.Millisecond)
	skipped, err := p.Wait(ctx)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	if skipped != 3 {
		t.Fatalf("skipped = %d, want 3 (ticks at 0, 10 and 20ms)", skipped)
	}
}

func TestUniformPacerWaitCancelled(t *testing.T) {
	p := newUniformPacer(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := p.Wait(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	cancel()
	if _, err := p.Wait(ctx); err == nil {
		t.Fatal("expected context error when cancelled")
	}
}

func TestTicksBefore(t *testing.T) {
	tests := []struct {
		span, interval time.Duration
		want           int64
	}{
		{0, time.Millisecond, 0},
		{-time.Second, time.Millisecond, 0},
		{time.Millisecond, time.Millisecond, 1},
		{time.Millisecond + 1, time.Millisecond, 2},
		{25 * time.Millisecond, 10 * time.Millisecond, 3},
	}
	for _, tt := range tests {
		if got := ticksBefore(tt.span, tt.interval); got != tt.want {
			t.Errorf("ticksBefore(%s, %s) = %d, want %d", tt.span, tt.interval, got, tt.want)
		}
	}
}

func TestNewPacerPoissonUsesSeededSampler(t *testing.T) {
	opt := Options{ArrivalModel: ArrivalModelPoisson, RandomSeed: 7}
	opt.normalize()
	a := newPacer(opt, 10).(*poissonPacer)
	b := newPacer(opt, 10).(*poissonPacer)
	for i := 0; i < 5; i++ {
		if da, db := a.nextDelay(), b.nextDelay(); da != db {
			t.Fatalf("draw %d differs for equal seeds: %s vs %s", i, da, db)
		}
	}
}
