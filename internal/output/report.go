package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/torosent/pixelfire/internal/metrics"
	"github.com/torosent/pixelfire/internal/orchestrator"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report orchestrator.Report) {
	totals := report.Totals()
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	fmt.Fprintf(w, "Target:            %s\n", report.BaseURL)
	fmt.Fprintf(w, "Duration:          %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Issued:            %d\n", totals.Issued)
	fmt.Fprintf(w, "Completed:         %d\n", totals.Completed)
	fmt.Fprintf(w, "Failed:            %d\n", totals.Failed)
	fmt.Fprintf(w, "Dropped:           %d\n", totals.Dropped)
	if totals.Missed > 0 {
		fmt.Fprintf(w, "Missed ticks:      %d (tick loop stalled)\n", totals.Missed)
	}
	fmt.Fprintf(w, "Cancelled:         %d\n", totals.Cancelled)
	if report.Duration > 0 {
		fmt.Fprintf(w, "Requests/sec:      %.2f\n", float64(totals.Issued-totals.Dropped)/report.Duration.Seconds())
	}
	if report.Probe != nil && !report.Probe.Reachable {
		fmt.Fprintf(w, "Probe:             unreachable (%s)\n", probeDetail(report))
	}
	if report.Aborted {
		fmt.Fprintln(w, "Aborted:           threshold breached")
	}

	if len(report.Scenarios) > 0 {
		fmt.Fprintln(w, "\nScenarios:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tISSUED\tCOMPLETED\tFAILED\tDROPPED\tCANCELLED")
		for _, s := range report.Scenarios {
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\t%d\n", s.Scenario, s.Issued, s.Completed, s.Failed, s.Dropped, s.Cancelled)
		}
		_ = tw.Flush()
	}

	writeMetrics(w, report.Snapshot)

	if len(report.Snapshot.Statuses) > 0 {
		fmt.Fprintln(w, "\nFailures by status:")
		writeStatusBuckets(w, report.Snapshot.Statuses, "  ")
	}
	if len(report.Snapshot.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, key := range sortedErrorKeys(report.Snapshot.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", key, report.Snapshot.Errors[key])
		}
	}

	if len(report.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, r := range report.Thresholds {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
	fmt.Fprintf(w, "\nVerdict:           %s\n", strings.ToUpper(string(report.Verdict)))
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report orchestrator.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeMetrics(w io.Writer, snap metrics.Snapshot) {
	keys := snap.Keys()
	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(w, "\nMetrics:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KEY\tCOUNT\tRATE\tMIN\tAVG\tMED\tMAX\tP90\tP95\tP99")
	for _, key := range keys {
		agg := snap.Metrics[key]
		if t := agg.Trend; t != nil {
			fmt.Fprintf(tw, "  %s\t%d\t-\t%.2fms\t%.2fms\t%.2fms\t%.2fms\t%.2fms\t%.2fms\t%.2fms\n",
				key, agg.Count, t.Min, t.Avg, t.Med, t.Max, t.P90, t.P95, t.P99)
			continue
		}
		rate := fmt.Sprintf("%.2f/s", agg.Rate)
		if agg.Type == metrics.TypeRate {
			rate = fmt.Sprintf("%.2f%%", agg.Rate*100)
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\t\t\t\t\t\t\t\n", key, agg.Count, rate)
	}
	_ = tw.Flush()
}

func writeStatusBuckets(w io.Writer, rows []metrics.StatusBucket, indent string) {
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s %s: %d\n", indent, row.Scenario, row.Code, row.Count)
	}
}

func probeDetail(report orchestrator.Report) string {
	if report.Probe.Error != "" {
		return report.Probe.Error
	}
	return fmt.Sprintf("status %d", report.Probe.StatusCode)
}

func sortedErrorKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
