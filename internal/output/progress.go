package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/pixelfire/internal/metrics"
)

// ProgressSource exposes the live counters of a run.
type ProgressSource interface {
	Totals() metrics.Totals
	InFlight() int
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   ProgressSource
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
	start    time.Time
	last     metrics.Totals
	lastAt   time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source ProgressSource, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
		start:    time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.lastAt = time.Now()
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case now := <-p.ticker.C:
			fmt.Fprint(p.writer, p.line(now))
		case <-p.done:
			return
		}
	}
}

// line renders the counters and the attempt rate since the previous line.
func (p *ProgressReporter) line(now time.Time) string {
	totals := p.source.Totals()
	rps := 0.0
	if window := now.Sub(p.lastAt).Seconds(); window > 0 {
		rps = float64(totals.Attempts-p.last.Attempts) / window
	}
	p.last, p.lastAt = totals, now

	return fmt.Sprintf("\r[%s] Requests: %d | Failures: %d | Dropped: %d | In-flight: %d | RPS: %.1f",
		now.Sub(p.start).Round(time.Second), totals.Attempts, totals.Failures, totals.Dropped, p.source.InFlight(), rps)
}
