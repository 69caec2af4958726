// Package orchestrator drives a full load test: it prepares scenarios and
// thresholds, runs every scheduler concurrently and turns the collected
// metrics into a verdict.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
	"github.com/torosent/pixelfire/internal/httpclient"
	"github.com/torosent/pixelfire/internal/metrics"
	"github.com/torosent/pixelfire/internal/runner"
	"github.com/torosent/pixelfire/internal/threshold"
	"github.com/torosent/pixelfire/internal/tracing"
)

// State is the lifecycle stage of an Orchestrator.
type State int32

const (
	StateIdle State = iota
	StateSetup
	StateRunning
	StateTeardown
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSetup:
		return "setup"
	case StateRunning:
		return "running"
	case StateTeardown:
		return "teardown"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("orchestrator: run already started")

const shutdownTimeout = 5 * time.Second

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExecutor replaces the HTTP executor built from configuration.
func WithExecutor(exec runner.Executor) Option {
	return func(o *Orchestrator) {
		o.exec = exec
	}
}

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(from, to State)) Option {
	return func(o *Orchestrator) {
		o.hook = fn
	}
}

// Orchestrator runs one load test. It is single use.
type Orchestrator struct {
	cfg    *config.Config
	logger *zap.Logger
	exec   runner.Executor
	hook   func(from, to State)

	state    atomic.Int32
	registry *prometheus.Registry
	aborted  atomic.Bool

	mu         sync.RWMutex
	collector  *metrics.Collector
	schedulers []*runner.Scheduler
	metricsURL string
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   zap.NewNop(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current lifecycle stage.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Gatherer exposes the Prometheus registry the run records into.
func (o *Orchestrator) Gatherer() prometheus.Gatherer {
	return o.registry
}

// MetricsURL returns the address of the Prometheus endpoint while it is
// serving, or "" when none is configured.
func (o *Orchestrator) MetricsURL() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.metricsURL
}

// Totals returns live attempt counters. It is zero before the run starts.
func (o *Orchestrator) Totals() metrics.Totals {
	o.mu.RLock()
	c := o.collector
	o.mu.RUnlock()
	if c == nil {
		return metrics.Totals{}
	}
	return c.Totals()
}

// InFlight returns the number of attempts currently executing.
func (o *Orchestrator) InFlight() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	n := 0
	for _, s := range o.schedulers {
		n += s.Pool().InFlight
	}
	return n
}

// Run executes the whole test. Setup problems return an error and leave the
// Orchestrator in StateFailed; per-attempt errors only show up in the report.
// Cancelling ctx stops every scenario and still produces a report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateSetup)) {
		return nil, ErrAlreadyRun
	}
	o.notify(StateIdle, StateSetup)

	rt, err := o.setup(ctx)
	if err != nil {
		o.transition(StateFailed)
		o.logger.Error("setup failed", zap.Error(err))
		return nil, err
	}
	defer rt.close(o.logger)

	o.transition(StateRunning)
	results, started, elapsed := o.run(ctx, rt)

	o.transition(StateTeardown)
	report := o.teardown(rt, results, started, elapsed)

	o.transition(StateDone)
	return report, nil
}

func (o *Orchestrator) transition(to State) {
	from := State(o.state.Swap(int32(to)))
	o.notify(from, to)
}

func (o *Orchestrator) notify(from, to State) {
	o.logger.Debug("orchestrator state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if o.hook != nil {
		o.hook(from, to)
	}
}

// runtime holds what setup builds beyond the Plan.
type runtime struct {
	plan      *Plan
	evaluator *threshold.Evaluator
	collector *metrics.Collector
	tracing   *tracing.Provider
	server    *metricsServer
	probe     httpclient.ProbeResult
}

func (rt *runtime) close(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
	if err := rt.tracing.Shutdown(ctx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}

func (o *Orchestrator) setup(ctx context.Context) (*runtime, error) {
	plan, err := Prepare(o.cfg)
	if err != nil {
		return nil, err
	}

	counts := plan.Fixtures.Counts()
	o.logger.Info("load test target",
		zap.String("base_url", o.cfg.BaseURL),
		zap.String("path_prefix", o.cfg.PathPrefix),
		zap.Int("fixtures_large", counts[fixture.Large]),
		zap.Int("fixtures_medium", counts[fixture.Medium]),
		zap.Int("fixtures_small", counts[fixture.Small]),
		zap.Int("scenarios", plan.Registry.Len()),
		zap.Int("thresholds", len(plan.Thresholds)),
	)

	tp, err := tracing.Init(ctx, o.cfg.Tracing)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		plan:      plan,
		evaluator: threshold.NewEvaluator(plan.Thresholds),
		collector: metrics.NewCollector(plan.Submetrics()...),
		tracing:   tp,
	}
	recorder := metrics.Tee(rt.collector, metrics.NewPrometheusRecorder(o.registry))

	exec := o.exec
	if exec == nil {
		exec = httpclient.NewExecutor(
			httpclient.NewClient(o.cfg.RequestTimeout),
			httpclient.WithTracing(tp.Tracer(), tp.ShouldPropagate()),
		)
	}
	if o.cfg.LogErrors {
		exec = runner.WithLogging(exec, o.logger)
	}

	specs := plan.Registry.Specs()
	schedulers := make([]*runner.Scheduler, 0, len(specs))
	for i, spec := range specs {
		seed := o.cfg.Seed
		if seed != 0 {
			seed += int64(i)
		}
		s, err := runner.New(spec, exec, recorder, runner.Options{
			ArrivalModel: runner.ArrivalModel(o.cfg.ArrivalModel),
			RandomSeed:   seed,
			Logger:       o.logger,
		})
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		schedulers = append(schedulers, s)
	}

	if o.cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(o.cfg.MetricsAddr, o.registry, o.logger)
		if err != nil {
			_ = tp.Shutdown(ctx)
			return nil, err
		}
		rt.server = srv
	}

	rt.probe = httpclient.Probe(ctx, o.cfg.BaseURL, o.cfg.ProbeTimeout, o.logger)
	if rt.probe.Reachable {
		o.logger.Info("target reachable",
			zap.String("url", rt.probe.URL),
			zap.Int("status", rt.probe.StatusCode),
			zap.Duration("latency", rt.probe.Duration),
		)
	} else {
		o.logger.Warn("target liveness probe failed, continuing",
			zap.String("url", rt.probe.URL),
			zap.Int("status", rt.probe.StatusCode),
			zap.String("error", rt.probe.Error),
		)
	}

	o.mu.Lock()
	o.collector = rt.collector
	o.schedulers = schedulers
	o.metricsURL = rt.server.URL()
	o.mu.Unlock()
	return rt, nil
}

func (o *Orchestrator) run(ctx context.Context, rt *runtime) ([]runner.Result, time.Time, time.Duration) {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	o.mu.RLock()
	schedulers := o.schedulers
	o.mu.RUnlock()

	o.logger.Info("load test started",
		zap.Int("scenarios", len(schedulers)),
		zap.Duration("duration", rt.plan.Registry.MaxDuration()),
	)

	started := time.Now()
	rt.collector.Start()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		o.watchThresholds(runCtx, rt, cancelRun)
	}()

	// Schedulers never fail; attempt errors live in the metrics. Stopping
	// early goes through runCtx.
	results := make([]runner.Result, len(schedulers))
	var g errgroup.Group
	for i, s := range schedulers {
		g.Go(func() error {
			results[i] = s.Run(runCtx)
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(started)

	cancelRun()
	<-watchDone
	return results, started, elapsed
}

func (o *Orchestrator) teardown(rt *runtime, results []runner.Result, started time.Time, elapsed time.Duration) *Report {
	snap := rt.collector.Snapshot()
	evaluated := rt.evaluator.Evaluate(snap)
	verdict := threshold.NewVerdict(evaluated)

	report := &Report{
		RunID:      ulid.Make().String(),
		BaseURL:    o.cfg.BaseURL,
		StartedAt:  started,
		Duration:   elapsed,
		Scenarios:  results,
		Snapshot:   snap,
		Thresholds: evaluated,
		Verdict:    verdict,
		Aborted:    o.aborted.Load(),
		Probe:      &rt.probe,
	}

	totals := report.Totals()
	o.logger.Info("load test completed",
		zap.String("run_id", report.RunID),
		zap.String("verdict", string(verdict)),
		zap.Bool("aborted", report.Aborted),
		zap.Int64("issued", totals.Issued),
		zap.Int64("completed", totals.Completed),
		zap.Int64("failed", totals.Failed),
		zap.Int64("dropped", totals.Dropped),
		zap.Int64("missed", totals.Missed),
		zap.Int64("cancelled", totals.Cancelled),
		zap.Duration("elapsed", elapsed),
	)
	for _, r := range threshold.Failed(evaluated) {
		o.logger.Warn("threshold failed", zap.String("metric", r.Metric), zap.String("expression", r.Expr), zap.Float64("actual", r.Actual))
	}
	return report
}
