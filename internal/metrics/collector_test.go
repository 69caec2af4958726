package metrics_test

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/torosent/pixelfire/internal/metrics"
)

func success(scenario string, d time.Duration, tags map[string]string) metrics.Outcome {
	return metrics.Outcome{Scenario: scenario, Tags: tags, Kind: metrics.KindSuccess, StatusCode: 200, Duration: d}
}

func TestCollectorTrendStats(t *testing.T) {
	c := metrics.NewCollector()

	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.Record(success("s", time.Duration(ms)*time.Millisecond, nil))
	}

	snap := c.Snapshot()
	agg, ok := snap.Get("http_req_duration")
	if !ok {
		t.Fatalf("http_req_duration missing from snapshot keys %v", snap.Keys())
	}
	if agg.Count != 5 {
		t.Errorf("expected count 5, got %d", agg.Count)
	}
	tr := agg.Trend
	if tr == nil {
		t.Fatal("expected trend stats")
	}
	if tr.Min != 10 {
		t.Errorf("expected min 10ms, got %v", tr.Min)
	}
	if tr.Max != 50 {
		t.Errorf("expected max 50ms, got %v", tr.Max)
	}
	if tr.Avg != 30 {
		t.Errorf("expected avg 30ms, got %v", tr.Avg)
	}
	if math.Abs(tr.Med-30) > 0.1 {
		t.Errorf("expected med ~30ms, got %v", tr.Med)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	// 100 samples: 1ms, 2ms, ..., 100ms.
	for i := 1; i <= 100; i++ {
		c.Record(success("s", time.Duration(i)*time.Millisecond, nil))
	}

	tr := c.Snapshot().Metrics["http_req_duration"].Trend
	if tr.P90 < 89 || tr.P90 > 91 {
		t.Errorf("expected P90 ~90ms, got %v", tr.P90)
	}
	if tr.P95 < 94 || tr.P95 > 96 {
		t.Errorf("expected P95 ~95ms, got %v", tr.P95)
	}
	if tr.P99 < 98 || tr.P99 > 100.1 {
		t.Errorf("expected P99 ~99ms, got %v", tr.P99)
	}
}

func TestPercentileAccuracyOnUniformSamples(t *testing.T) {
	c := metrics.NewCollector()
	rnd := rand.New(rand.NewSource(1))

	const n = 10000
	values := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		d := time.Duration(rnd.Float64() * float64(time.Second))
		if d < time.Microsecond {
			d = time.Microsecond
		}
		values = append(values, float64(d.Microseconds())/1000)
		c.Record(success("s", d, nil))
	}
	sort.Float64s(values)
	exact := values[int(math.Ceil(0.95*n))-1]

	got := c.Snapshot().Metrics["http_req_duration"].Trend.P95
	if diff := math.Abs(got-exact) / exact; diff > 0.05 {
		t.Fatalf("p95 = %.2fms, exact %.2fms (relative error %.3f)", got, exact, diff)
	}
}

func TestConcurrentRecordLosesNoUpdates(t *testing.T) {
	c := metrics.NewCollector()
	const workers = 16
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			tags := map[string]string{"test_type": "source"}
			if w%2 == 0 {
				tags = map[string]string{"test_type": "resize"}
			}
			for i := 0; i < perWorker; i++ {
				c.Record(success("s", time.Millisecond, tags))
			}
		}(w)
	}
	wg.Wait()

	snap := c.Snapshot()
	if got := snap.Metrics["http_reqs"].Count; got != workers*perWorker {
		t.Fatalf("http_reqs = %d, want %d", got, workers*perWorker)
	}
	if got := snap.Metrics["http_req_duration"].Count; got != workers*perWorker {
		t.Fatalf("http_req_duration count = %d, want %d", got, workers*perWorker)
	}
	resize, _ := snap.Get("http_reqs{test_type:resize,scenario:s}")
	if resize.Count != workers/2*perWorker {
		t.Fatalf("resize series = %d, want %d", resize.Count, workers/2*perWorker)
	}
	if totals := c.Totals(); totals.Attempts != workers*perWorker {
		t.Fatalf("totals attempts = %d", totals.Attempts)
	}
}

func TestSubmetricsMatchTagSubsets(t *testing.T) {
	sub := metrics.NewKey(metrics.MetricHTTPReqDuration, map[string]string{"test_type": "resize"})
	c := metrics.NewCollector(sub)

	c.Record(success("resize_800_test", 10*time.Millisecond, map[string]string{"test_type": "resize", "width": "800"}))
	c.Record(success("resize_400_test", 30*time.Millisecond, map[string]string{"test_type": "resize", "width": "400"}))
	c.Record(success("source_small_test", 500*time.Millisecond, map[string]string{"test_type": "source"}))

	snap := c.Snapshot()
	agg, ok := snap.Get("http_req_duration{test_type:resize}")
	if !ok {
		t.Fatal("submetric missing")
	}
	if agg.Count != 2 {
		t.Errorf("submetric count = %d, want 2", agg.Count)
	}
	if agg.Trend.Max != 30 {
		t.Errorf("submetric max = %v, want 30", agg.Trend.Max)
	}
	if bare := snap.Metrics["http_req_duration"]; bare.Count != 3 {
		t.Errorf("bare count = %d, want 3", bare.Count)
	}
}

func TestRegisteredSubmetricAppearsWithZeroSamples(t *testing.T) {
	c := metrics.NewCollector(metrics.NewKey(metrics.MetricCounterByTag, map[string]string{"test_type": "cdnCgi"}))
	agg, ok := c.Snapshot().Get("counter_by_tag{test_type:cdnCgi}")
	if !ok {
		t.Fatal("registered submetric should be present")
	}
	if agg.Count != 0 {
		t.Fatalf("count = %d, want 0", agg.Count)
	}
}

func TestCancelledAndDroppedAttemptsStayOutOfDuration(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(success("s", 5*time.Millisecond, nil))
	c.Record(metrics.Outcome{Scenario: "s", Kind: metrics.KindCancelled, Duration: time.Second})
	c.Record(metrics.Outcome{Scenario: "s", Kind: metrics.KindCapacityExceeded})
	c.Record(metrics.Outcome{Scenario: "s", Kind: metrics.KindCapacityExceeded})

	snap := c.Snapshot()
	if got := snap.Metrics["http_req_duration"].Count; got != 1 {
		t.Errorf("duration count = %d, want 1", got)
	}
	if got := snap.Metrics["http_reqs"].Count; got != 1 {
		t.Errorf("http_reqs = %d, want 1", got)
	}
	if got := snap.Metrics["dropped_iterations"].Count; got != 2 {
		t.Errorf("dropped_iterations = %d, want 2", got)
	}
	if got := snap.Metrics["cancelled_iterations"].Count; got != 1 {
		t.Errorf("cancelled_iterations = %d, want 1", got)
	}
	totals := c.Totals()
	if totals.Dropped != 2 || totals.Cancelled != 1 || totals.Attempts != 1 {
		t.Errorf("totals = %+v", totals)
	}
}

func TestFailureRateAndChecks(t *testing.T) {
	c := metrics.NewCollector()
	for i := 0; i < 3; i++ {
		c.Record(metrics.Outcome{
			Scenario: "s", Kind: metrics.KindSuccess, StatusCode: 200, Duration: time.Millisecond,
			Checks: map[string]bool{"status is 200": true, "fast": i > 0},
		})
	}
	c.Record(metrics.Outcome{
		Scenario: "s", Kind: metrics.KindRequestFailed, StatusCode: 503, Duration: time.Millisecond,
		Checks: map[string]bool{"status is 200": false, "fast": true},
	})

	snap := c.Snapshot()
	failed := snap.Metrics["http_req_failed"]
	if failed.Rate != 0.25 || failed.Passes != 1 || failed.Fails != 3 {
		t.Errorf("http_req_failed = %+v, want rate 0.25", failed)
	}
	checks := snap.Metrics["checks"]
	if checks.Count != 8 || checks.Passes != 6 {
		t.Errorf("checks = %+v, want 6/8", checks)
	}
	status, ok := snap.Get("checks{check:status is 200,scenario:s}")
	if !ok || status.Rate != 0.75 {
		t.Errorf("status check series = %+v (ok=%v)", status, ok)
	}
	if snap.Errors["HTTP 503"] != 1 {
		t.Errorf("errors = %v, want HTTP 503 counted", snap.Errors)
	}
	if len(snap.Statuses) != 1 || snap.Statuses[0].Code != "503" {
		t.Errorf("statuses = %+v", snap.Statuses)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(success("s", 10*time.Millisecond, nil))
	before := c.Snapshot()

	for i := 0; i < 100; i++ {
		c.Record(success("s", time.Second, nil))
	}

	agg := before.Metrics["http_req_duration"]
	if agg.Count != 1 {
		t.Fatalf("snapshot count changed to %d", agg.Count)
	}
	if p := agg.Trend.Percentile(99); p > 10.1 {
		t.Fatalf("snapshot percentile changed: %v", p)
	}
}

func TestCounterRateUsesElapsed(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(success("s", time.Millisecond, nil))
	time.Sleep(20 * time.Millisecond)
	agg := c.Snapshot().Metrics["http_reqs"]
	if agg.Rate <= 0 || agg.Rate > 100 {
		t.Fatalf("rate = %v, want (0, 100]", agg.Rate)
	}
}

func TestRequestFailureWithTransportError(t *testing.T) {
	c := metrics.NewCollector()
	c.Record(metrics.Outcome{Scenario: "s", Kind: metrics.KindRequestFailed, Err: errors.New("boom"), Duration: time.Millisecond})
	snap := c.Snapshot()
	if len(snap.Statuses) != 1 || snap.Statuses[0].Code != "error" {
		t.Fatalf("statuses = %+v", snap.Statuses)
	}
}
