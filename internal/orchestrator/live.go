package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/threshold"
)

// watchThresholds evaluates thresholds against live snapshots until ctx is
// done. Each breach is logged once; Missing results are ignored because a
// submetric may simply not have been sampled yet. With abort_on_fail the
// first breach cancels the run.
func (o *Orchestrator) watchThresholds(ctx context.Context, rt *runtime, cancel context.CancelFunc) {
	if len(rt.evaluator.Thresholds()) == 0 {
		return
	}
	interval := o.cfg.ThresholdInterval
	if interval <= 0 {
		interval = config.DefaultThresholdInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	breached := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, r := range threshold.Failed(rt.evaluator.Evaluate(rt.collector.Snapshot())) {
			id := r.Metric + " " + r.Expr
			if breached[id] {
				continue
			}
			breached[id] = true
			o.logger.Warn("threshold breached",
				zap.String("metric", r.Metric),
				zap.String("expression", r.Expr),
				zap.Float64("actual", r.Actual),
			)
			if o.cfg.AbortOnFail && o.aborted.CompareAndSwap(false, true) {
				o.logger.Warn("aborting run on threshold breach")
				cancel()
				return
			}
		}
	}
}
