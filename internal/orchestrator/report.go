package orchestrator

import (
	"time"

	"github.com/torosent/pixelfire/internal/httpclient"
	"github.com/torosent/pixelfire/internal/metrics"
	"github.com/torosent/pixelfire/internal/runner"
	"github.com/torosent/pixelfire/internal/threshold"
)

// Report is the end-of-run summary.
type Report struct {
	RunID      string                  `json:"run_id"`
	BaseURL    string                  `json:"base_url"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
	Scenarios  []runner.Result         `json:"scenarios"`
	Snapshot   metrics.Snapshot        `json:"snapshot"`
	Thresholds []threshold.Result      `json:"thresholds"`
	Verdict    threshold.Verdict       `json:"verdict"`
	Aborted    bool                    `json:"aborted"`
	Probe      *httpclient.ProbeResult `json:"probe,omitempty"`
}

// Totals sums the per-scenario results.
func (r Report) Totals() runner.Result {
	var total runner.Result
	for _, s := range r.Scenarios {
		total.Issued += s.Issued
		total.Dropped += s.Dropped
		total.Missed += s.Missed
		total.Completed += s.Completed
		total.Failed += s.Failed
		total.Cancelled += s.Cancelled
		if s.LastIssuedAt.After(total.LastIssuedAt) {
			total.LastIssuedAt = s.LastIssuedAt
		}
	}
	total.Duration = r.Duration
	return total
}
