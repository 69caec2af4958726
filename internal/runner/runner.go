package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/pixelfire/internal/metrics"
	"github.com/torosent/pixelfire/internal/pool"
	"github.com/torosent/pixelfire/internal/scenario"
)

// Result captures execution summary of one scenario.
// Issued equals Dropped + Completed + Failed + Cancelled. Missed is the part
// of Dropped lost to a stalled tick loop rather than to busy workers.
type Result struct {
	Scenario     string        `json:"scenario"`
	Issued       int64         `json:"issued"`
	Dropped      int64         `json:"dropped"`
	Missed       int64         `json:"missed"`
	Completed    int64         `json:"completed"`
	Failed       int64         `json:"failed"`
	Cancelled    int64         `json:"cancelled"`
	Duration     time.Duration `json:"duration"`
	LastIssuedAt time.Time     `json:"last_issued_at"`
}

// Scheduler issues attempts for one scenario at a constant arrival rate,
// independent of how long each attempt takes.
type Scheduler struct {
	spec     scenario.Spec
	exec     Executor
	recorder metrics.Recorder
	opt      Options
	logger   *zap.Logger
	pool     *pool.WorkerPool
	pacer    pacer
	stallLog rate.Sometimes

	issued     atomic.Int64
	dropped    atomic.Int64
	missed     atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	cancelled  atomic.Int64
	lastIssued atomic.Int64
	ran        atomic.Bool
}

// New validates spec and prepares a Scheduler. It returns an error wrapping
// scenario.ErrInvalidScenario when the scenario is unusable.
func New(spec scenario.Spec, exec Executor, recorder metrics.Recorder, opt Options) (*Scheduler, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, errors.New("runner: executor is required")
	}
	if recorder == nil {
		recorder = metrics.Tee()
	}
	opt.normalize()
	perSecond := spec.Rate / spec.TimeUnit.Seconds()
	return &Scheduler{
		spec:     spec,
		exec:     exec,
		recorder: recorder,
		opt:      opt,
		logger:   opt.Logger.With(zap.String("scenario", spec.Name)),
		pool:     pool.NewWorkerPool(spec.MinWorkers, spec.MaxWorkers),
		pacer:    newPacer(opt, perSecond),
		stallLog: rate.Sometimes{First: 1, Interval: time.Second},
	}, nil
}

// Spec returns the scenario being run.
func (s *Scheduler) Spec() scenario.Spec {
	return s.spec
}

// Pool reports the worker pool state.
func (s *Scheduler) Pool() pool.Stats {
	return s.pool.Stats()
}

// Run ticks until the scenario duration elapses or ctx is cancelled. When
// the duration ends, in-flight attempts get the scenario's grace period before
// their context is cancelled; cancelling ctx cuts them short immediately.
// Run may only be called once.
func (s *Scheduler) Run(ctx context.Context) Result {
	start := time.Now()
	if !s.ran.CompareAndSwap(false, true) {
		return s.result(0)
	}

	// attemptCtx outlives tickCtx by the grace period.
	attemptCtx, cancelAttempts := context.WithCancel(ctx)
	defer cancelAttempts()

	tickCtx, cancelTicks := context.WithTimeout(ctx, s.spec.Duration)
	defer cancelTicks()

	s.logger.Info("scenario started",
		zap.Float64("rate", s.spec.Rate),
		zap.Duration("time_unit", s.spec.TimeUnit),
		zap.Duration("duration", s.spec.Duration),
		zap.Int("min_workers", s.spec.MinWorkers),
		zap.Int("max_workers", s.spec.MaxWorkers),
	)

	s.tick(tickCtx, attemptCtx)

	if ctx.Err() != nil {
		cancelAttempts()
	} else if s.spec.GracePeriod > 0 {
		graceCtx, cancelGrace := context.WithTimeout(ctx, s.spec.GracePeriod)
		if err := s.pool.Wait(graceCtx); err != nil {
			s.logger.Debug("grace period elapsed, cancelling in-flight attempts",
				zap.Int("in_flight", s.pool.Stats().InFlight))
		}
		cancelGrace()
		cancelAttempts()
	} else {
		cancelAttempts()
	}
	s.pool.Close()

	res := s.result(time.Since(start))
	s.logger.Info("scenario finished",
		zap.Int64("issued", res.Issued),
		zap.Int64("completed", res.Completed),
		zap.Int64("failed", res.Failed),
		zap.Int64("dropped", res.Dropped),
		zap.Int64("missed", res.Missed),
		zap.Int64("cancelled", res.Cancelled),
		zap.Duration("elapsed", res.Duration),
	)
	return res
}

func (s *Scheduler) tick(tickCtx, attemptCtx context.Context) {
	for {
		skipped, err := s.pacer.Wait(tickCtx)
		if skipped > 0 {
			s.skipTicks(skipped)
		}
		if err != nil || tickCtx.Err() != nil {
			return
		}
		issuedAt := time.Now()
		s.issued.Add(1)
		s.lastIssued.Store(issuedAt.UnixNano())

		if !s.pool.TrySubmit(func() { s.attempt(attemptCtx, issuedAt) }) {
			s.drop(issuedAt, ErrCapacityExceeded)
		}
	}
}

// skipTicks accounts for ticks the pacer passed over while the loop was
// stalled. They count as issued and dropped.
func (s *Scheduler) skipTicks(n int64) {
	now := time.Now()
	s.issued.Add(n)
	s.missed.Add(n)
	for range n {
		s.drop(now, ErrTickMissed)
	}
	s.stallLog.Do(func() {
		s.logger.Warn("tick loop fell behind, ticks dropped",
			zap.Int64("skipped", n),
			zap.Int64("missed_total", s.missed.Load()),
		)
	})
}

func (s *Scheduler) drop(issuedAt time.Time, cause error) {
	s.dropped.Add(1)
	s.recorder.Record(metrics.Outcome{
		Scenario: s.spec.Name,
		Tags:     s.spec.Tags,
		Kind:     metrics.KindCapacityExceeded,
		Err:      cause,
		IssuedAt: issuedAt,
	})
}

func (s *Scheduler) attempt(ctx context.Context, issuedAt time.Time) {
	o := s.execute(ctx, issuedAt)
	switch o.Kind {
	case metrics.KindSuccess:
		s.completed.Add(1)
	case metrics.KindRequestFailed:
		s.failed.Add(1)
	case metrics.KindCancelled:
		s.cancelled.Add(1)
	}
	s.recorder.Record(o)

	if s.spec.ThinkTime > 0 && o.Kind != metrics.KindCancelled {
		timer := time.NewTimer(s.spec.ThinkTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, issuedAt time.Time) metrics.Outcome {
	o := metrics.Outcome{Scenario: s.spec.Name, Tags: s.spec.Tags, IssuedAt: issuedAt}
	if ctx.Err() != nil {
		o.Kind = metrics.KindCancelled
		o.Err = ctx.Err()
		return o
	}

	req, err := s.spec.Builder.Build(s.spec.Env)
	if err != nil {
		o.Kind = metrics.KindRequestFailed
		o.Err = err
		return o
	}
	o.Tags = mergeTags(s.spec.Tags, req.Tags)

	started := time.Now()
	resp, err := s.exec.Do(ctx, req)
	o.Duration = time.Since(started)
	if resp != nil && resp.Duration > 0 {
		o.Duration = resp.Duration
	}

	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		o.Kind = metrics.KindCancelled
		o.Err = err
		return o
	case err != nil:
		o.Kind = metrics.KindRequestFailed
		o.Err = err
		return o
	case resp == nil:
		o.Kind = metrics.KindRequestFailed
		o.Err = errors.New("executor returned no response")
		return o
	}

	o.StatusCode = resp.StatusCode
	o.Checks = scenario.EvaluateChecks(req.Checks, resp)
	if successStatus(resp.StatusCode) {
		o.Kind = metrics.KindSuccess
	} else {
		o.Kind = metrics.KindRequestFailed
		o.Err = &HTTPError{StatusCode: resp.StatusCode, URL: req.URL}
	}
	return o
}

func (s *Scheduler) result(elapsed time.Duration) Result {
	res := Result{
		Scenario:  s.spec.Name,
		Issued:    s.issued.Load(),
		Dropped:   s.dropped.Load(),
		Missed:    s.missed.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Cancelled: s.cancelled.Load(),
		Duration:  elapsed,
	}
	if ns := s.lastIssued.Load(); ns > 0 {
		res.LastIssuedAt = time.Unix(0, ns)
	}
	return res
}

func mergeTags(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
