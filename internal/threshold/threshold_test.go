package threshold

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/torosent/pixelfire/internal/metrics"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "valid p95 latency threshold",
			input: "http_req_duration:p(95)<500",
			want: Threshold{
				Metric:     "http_req_duration",
				Aggregate:  "p(95)",
				Percentile: 95,
				Operator:   "<",
				Value:      500,
				Raw:        "http_req_duration:p(95)<500",
			},
		},
		{
			name:  "short percentile form with spaces",
			input: "http_req_duration:p99 <= 1000",
			want: Threshold{
				Metric:     "http_req_duration",
				Aggregate:  "p(99)",
				Percentile: 99,
				Operator:   "<=",
				Value:      1000,
				Raw:        "http_req_duration:p99 <= 1000",
			},
		},
		{
			name:  "valid failure rate threshold",
			input: "http_req_failed:rate<0.01",
			want: Threshold{
				Metric:    "http_req_failed",
				Aggregate: "rate",
				Operator:  "<",
				Value:     0.01,
				Raw:       "http_req_failed:rate<0.01",
			},
		},
		{
			name:  "tagged key is normalized",
			input: "http_req_duration{width:800,test_type:resize}:p(95)<1200",
			want: Threshold{
				Metric:     "http_req_duration{test_type:resize,width:800}",
				Aggregate:  "p(95)",
				Percentile: 95,
				Operator:   "<",
				Value:      1200,
				Raw:        "http_req_duration{width:800,test_type:resize}:p(95)<1200",
			},
		},
		{
			name:  "counter rate",
			input: "http_reqs:rate>100",
			want: Threshold{
				Metric:    "http_reqs",
				Aggregate: "rate",
				Operator:  ">",
				Value:     100,
				Raw:       "http_reqs:rate>100",
			},
		},
		{
			name:  "fractional percentile",
			input: "http_req_duration:p(99.9)<2000",
			want: Threshold{
				Metric:     "http_req_duration",
				Aggregate:  "p(99.9)",
				Percentile: 99.9,
				Operator:   "<",
				Value:      2000,
				Raw:        "http_req_duration:p(99.9)<2000",
			},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "missing expression separator", input: "http_req_duration", wantError: true},
		{name: "missing operator", input: "http_req_duration:p(95) 500", wantError: true},
		{name: "unknown metric", input: "invalid_metric:p(95)<500", wantError: true},
		{name: "invalid operator", input: "http_req_duration:p(95)<<500", wantError: true},
		{name: "value not a number", input: "http_req_duration:p(95)<abc", wantError: true},
		{name: "percentile out of range", input: "http_req_duration:p(150)<500", wantError: true},
		{name: "rate on trend", input: "http_req_duration:rate<0.1", wantError: true},
		{name: "percentile on rate", input: "http_req_failed:p(95)<0.1", wantError: true},
		{name: "avg on counter", input: "http_reqs:avg<10", wantError: true},
		{name: "unterminated tag set", input: "http_req_duration{width:800:p(95)<500", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlag(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseFlag() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if tt.wantError {
				return
			}
			if got.Metric != tt.want.Metric {
				t.Errorf("ParseFlag() Metric = %v, want %v", got.Metric, tt.want.Metric)
			}
			if got.Aggregate != tt.want.Aggregate {
				t.Errorf("ParseFlag() Aggregate = %v, want %v", got.Aggregate, tt.want.Aggregate)
			}
			if got.Percentile != tt.want.Percentile {
				t.Errorf("ParseFlag() Percentile = %v, want %v", got.Percentile, tt.want.Percentile)
			}
			if got.Operator != tt.want.Operator {
				t.Errorf("ParseFlag() Operator = %v, want %v", got.Operator, tt.want.Operator)
			}
			if got.Value != tt.want.Value {
				t.Errorf("ParseFlag() Value = %v, want %v", got.Value, tt.want.Value)
			}
			if got.Raw != tt.want.Raw {
				t.Errorf("ParseFlag() Raw = %v, want %v", got.Raw, tt.want.Raw)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantCount int
		wantError bool
	}{
		{
			name: "multiple valid thresholds",
			input: []string{
				"http_req_duration:p(95)<500",
				"http_req_failed:rate<0.01",
				"http_reqs:rate>100",
			},
			wantCount: 3,
		},
		{
			name:      "empty slice",
			input:     []string{},
			wantCount: 0,
		},
		{
			name: "one valid, one invalid",
			input: []string{
				"http_req_duration:p(95)<500",
				"invalid threshold",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMultiple(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseMultiple() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && len(got) != tt.wantCount {
				t.Errorf("ParseMultiple() returned %d thresholds, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestParseSet(t *testing.T) {
	set := map[string][]string{
		"http_req_failed": {"rate<0.01"},
		"http_req_duration{test_type:source,distribution:medium}": {"p(95)<1000", "max<3000"},
		"counter_by_tag{test_type:source}":                        nil,
	}

	thresholds, reportOnly, err := ParseSet(set)
	if err != nil {
		t.Fatalf("ParseSet() error = %v", err)
	}
	if len(thresholds) != 3 {
		t.Fatalf("expected 3 thresholds, got %d", len(thresholds))
	}
	if len(reportOnly) != 1 || reportOnly[0].String() != "counter_by_tag{test_type:source}" {
		t.Fatalf("unexpected report-only keys: %v", reportOnly)
	}

	if _, _, err := ParseSet(map[string][]string{"nope": {"rate<1"}}); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestEvaluator(t *testing.T) {
	snap := sampleSnapshot()

	tests := []struct {
		name       string
		thresholds []string
		want       []Status
	}{
		{
			name: "all thresholds pass",
			thresholds: []string{
				"http_req_duration:p(99)<150",
				"http_req_failed:rate<0.15",
				"http_reqs:count>=100",
			},
			want: []Status{StatusPass, StatusPass, StatusPass},
		},
		{
			name: "some thresholds fail",
			thresholds: []string{
				"http_req_duration:p(95)<50",
				"http_req_failed:rate<0.05",
				"http_reqs:count>50",
			},
			want: []Status{StatusFail, StatusFail, StatusPass},
		},
		{
			name: "avg, min, med and max latency",
			thresholds: []string{
				"http_req_duration:avg<60",
				"http_req_duration:max<=101",
				"http_req_duration:min>0.5",
				"http_req_duration:med<52",
			},
			want: []Status{StatusPass, StatusPass, StatusPass, StatusPass},
		},
		{
			name: "failure passes and fails",
			thresholds: []string{
				"http_req_failed:passes==10",
				"http_req_failed:fails==90",
			},
			want: []Status{StatusPass, StatusPass},
		},
		{
			name: "tagged submetric",
			thresholds: []string{
				"http_req_duration{test_type:resize}:max<=101",
				"http_req_duration{test_type:resize}:count==100",
			},
			want: []Status{StatusPass, StatusPass},
		},
		{
			name: "missing metric",
			thresholds: []string{
				"http_req_duration{test_type:format}:p(95)<500",
				"checks:rate>0.9",
			},
			want: []Status{StatusMissing, StatusMissing},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := ParseMultiple(tt.thresholds)
			if err != nil {
				t.Fatalf("ParseMultiple() error = %v", err)
			}

			evaluator := NewEvaluator(thresholds)
			results := evaluator.Evaluate(snap)

			if len(results) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.want))
			}

			for i, result := range results {
				if result.Status != tt.want[i] {
					t.Errorf("threshold[%d] %q: got %s, want %s (actual=%.2f)",
						i, result.Threshold.Raw, result.Status, tt.want[i], result.Actual)
				}
				if result.Pass != (result.Status == StatusPass) {
					t.Errorf("threshold[%d]: Pass=%v inconsistent with status %s", i, result.Pass, result.Status)
				}
			}
		})
	}
}

func TestEvaluateZeroSampleSubmetricIsMissing(t *testing.T) {
	key, err := metrics.ParseKey("http_req_duration{test_type:cdnCgi}")
	if err != nil {
		t.Fatal(err)
	}
	c := metrics.NewCollector(key)
	c.Record(metrics.Outcome{Scenario: "s", Tags: map[string]string{"test_type": "source"}, Kind: metrics.KindSuccess, StatusCode: 200, Duration: time.Millisecond})

	th, err := ParseFlag("http_req_duration{test_type:cdnCgi}:p(95)<500")
	if err != nil {
		t.Fatal(err)
	}
	results := Evaluate(c.Snapshot(), []Threshold{th})
	if results[0].Status != StatusMissing {
		t.Fatalf("expected missing, got %s", results[0].Status)
	}
	if NewVerdict(results) != VerdictInconclusive {
		t.Fatalf("expected inconclusive verdict, got %s", NewVerdict(results))
	}
}

func TestNewVerdict(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Verdict
	}{
		{"no thresholds", nil, VerdictPass},
		{"all pass", []Status{StatusPass, StatusPass}, VerdictPass},
		{"one fail", []Status{StatusPass, StatusFail}, VerdictFail},
		{"fail beats missing", []Status{StatusMissing, StatusFail}, VerdictFail},
		{"missing only", []Status{StatusPass, StatusMissing}, VerdictInconclusive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []Result
			for _, s := range tt.statuses {
				results = append(results, Result{Status: s})
			}
			if got := NewVerdict(results); got != tt.want {
				t.Errorf("NewVerdict() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFailed(t *testing.T) {
	results := []Result{{Status: StatusPass}, {Status: StatusFail, Metric: "a"}, {Status: StatusMissing}}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Metric != "a" {
		t.Fatalf("unexpected failed results: %+v", failed)
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{"less than true", 50, "<", 100, true},
		{"less than false", 100, "<", 50, false},
		{"less than equal", 100, "<", 100, false},
		{"less than or equal true", 50, "<=", 100, true},
		{"less than or equal equal", 100, "<=", 100, true},
		{"less than or equal false", 150, "<=", 100, false},
		{"greater than true", 150, ">", 100, true},
		{"greater than false", 50, ">", 100, false},
		{"greater than equal", 100, ">", 100, false},
		{"greater than or equal true", 150, ">=", 100, true},
		{"greater than or equal equal", 100, ">=", 100, true},
		{"greater than or equal false", 50, ">=", 100, false},
		{"equal true", 100, "==", 100, true},
		{"equal false", 100, "==", 101, false},
		{"equal with floating point precision", 100.0000000001, "==", 100, true},
		{"unknown operator", 1, "!=", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareValues(tt.actual, tt.operator, tt.expected)
			if got != tt.want {
				t.Errorf("compareValues(%.2f, %s, %.2f) = %v, want %v",
					tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestExtractValueWithoutTrend(t *testing.T) {
	th := Threshold{Metric: "http_req_duration", Aggregate: "avg"}
	if _, err := extractValue(th, metrics.Aggregate{Count: 1}); err == nil {
		t.Fatal("expected error when trend data is absent")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	exprs := []string{"min", "max", "avg", "med", "p(90)", "p(95)", "count"}
	ops := []string{"<", "<=", ">", ">=", "=="}

	rapid.Check(t, func(t *rapid.T) {
		c := metrics.NewCollector()
		n := rapid.IntRange(0, 50).Draw(t, "samples")
		for i := 0; i < n; i++ {
			ms := rapid.IntRange(1, 5000).Draw(t, "ms")
			failed := rapid.Bool().Draw(t, "failed")
			o := metrics.Outcome{Scenario: "s", Kind: metrics.KindSuccess, StatusCode: 200, Duration: time.Duration(ms) * time.Millisecond}
			if failed {
				o.Kind = metrics.KindRequestFailed
				o.StatusCode = 500
				o.Err = errors.New("boom")
			}
			c.Record(o)
		}

		agg := rapid.SampledFrom(exprs).Draw(t, "aggregate")
		op := rapid.SampledFrom(ops).Draw(t, "operator")
		value := rapid.IntRange(0, 5000).Draw(t, "value")
		th, err := Parse("http_req_duration", agg+op+strconv.Itoa(value))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		rateTh, err := Parse("http_req_failed", "rate"+op+"0.5")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}

		snap := c.Snapshot()
		first := Evaluate(snap, []Threshold{th, rateTh})
		second := Evaluate(snap, []Threshold{th, rateTh})
		for i := range first {
			if first[i].Status != second[i].Status || first[i].Actual != second[i].Actual {
				t.Fatalf("evaluation not deterministic: %+v vs %+v", first[i], second[i])
			}
			if n == 0 && first[i].Status != StatusMissing {
				t.Fatalf("expected missing with no samples, got %s", first[i].Status)
			}
		}
		if NewVerdict(first) != NewVerdict(second) {
			t.Fatal("verdict not deterministic")
		}
	})
}

// sampleSnapshot records 100 attempts at 1..100ms, every tenth one failing.
func sampleSnapshot() metrics.Snapshot {
	c := metrics.NewCollector(metrics.NewKey(metrics.MetricHTTPReqDuration, map[string]string{"test_type": "resize"}))
	for i := 1; i <= 100; i++ {
		o := metrics.Outcome{
			Scenario:   "resize_800_test",
			Tags:       map[string]string{"test_type": "resize", "width": "800"},
			Kind:       metrics.KindSuccess,
			StatusCode: 200,
			Duration:   time.Duration(i) * time.Millisecond,
		}
		if i%10 == 0 {
			o.Kind = metrics.KindRequestFailed
			o.StatusCode = 503
		}
		c.Record(o)
	}
	return c.Snapshot()
}
