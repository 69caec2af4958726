package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/pixelfire/internal/scenario"
)

// Executor performs one HTTP request. A non-2xx status is a Response, not
// an error; errors mean no response was received.
type Executor interface {
	Do(ctx context.Context, req scenario.Request) (*scenario.Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req scenario.Request) (*scenario.Response, error)

func (f ExecutorFunc) Do(ctx context.Context, req scenario.Request) (*scenario.Response, error) {
	return f(ctx, req)
}

// ArrivalModel selects how ticks are spaced.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure a Scheduler.
type Options struct {
	ArrivalModel   ArrivalModel     // uniform (default) or poisson
	RandomSeed     int64            // seeds the poisson sampler (0 means time-based)
	PoissonSampler func() float64   // optional injection for tests
	Clock          func() time.Time // uniform pacer clock, time.Now when nil
	Logger         *zap.Logger
}

func (o *Options) normalize() {
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
