// Package runner provides the open-loop arrival scheduler that drives each
// pixelfire scenario.
//
// A [Scheduler] fires ticks at the scenario's constant arrival rate and hands
// every tick to a bounded worker pool. Ticks never wait for earlier attempts:
// if every worker is busy the tick is recorded as dropped
// ([metrics.KindCapacityExceeded]) and the loop moves on.
//
// # Basic Usage
//
//	sched, err := runner.New(spec, executor, collector, runner.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	result := sched.Run(ctx)
//
// # Executor Interface
//
// The [Executor] interface performs one request:
//
//	type Executor interface {
//		Do(ctx context.Context, req scenario.Request) (*scenario.Response, error)
//	}
//
// # Arrival Models
//
//   - [ArrivalModelUniform]: ticks at fixed intervals of TimeUnit/Rate
//   - [ArrivalModelPoisson]: exponential inter-arrival times with the same mean
//
// Uniform ticks are scheduled on an absolute timeline, so small wake-up delays
// are made up. If the tick loop itself stalls, the overdue ticks are skipped
// and counted in Result.Missed and Result.Dropped with [ErrTickMissed].
//
// # Stopping
//
// Ticking stops when the scenario duration elapses. In-flight attempts then
// get the scenario's grace period before their context is cancelled. Cancelling
// the parent context stops ticking and cancels in-flight attempts at once.
// Attempts cut short are recorded as [metrics.KindCancelled].
//
// # Middleware
//
//   - [WithLogging]: log transport errors and unexpected statuses
//
// # Error Handling
//
// Non-2xx responses are recorded with an [HTTPError]:
//
//	var httpErr *runner.HTTPError
//	if errors.As(outcome.Err, &httpErr) {
//		fmt.Printf("Status: %d\n", httpErr.StatusCode)
//	}
package runner
