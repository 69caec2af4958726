// Package threshold parses latency and failure-rate assertions and evaluates
// them against a metrics snapshot.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/pixelfire/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric     string      // normalized metric key, e.g. "http_req_duration{test_type:resize}"
	Key        metrics.Key // parsed form of Metric
	Aggregate  string      // "min", "max", "avg", "med", "p(95)", "count", "rate", "passes", "fails"
	Percentile float64     // set when Aggregate is a percentile
	Operator   string      // "<", "<=", ">", ">=", "=="
	Value      float64     // The threshold value to compare against
	Raw        string      // Original threshold string for display
}

// Status is the outcome of a single threshold.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusMissing Status = "missing"
)

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold `json:"-"`
	Metric    string    `json:"metric"`
	Expr      string    `json:"expression"`
	Actual    float64   `json:"actual"`
	Status    Status    `json:"status"`
	Pass      bool      `json:"pass"`
	Message   string    `json:"message"`
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds the evaluator was built with.
func (e *Evaluator) Thresholds() []Threshold {
	return append([]Threshold(nil), e.thresholds...)
}

// Evaluate checks all thresholds against the provided snapshot.
func (e *Evaluator) Evaluate(snap metrics.Snapshot) []Result {
	return Evaluate(snap, e.thresholds)
}

// Evaluate checks thresholds against snap. It has no side effects, so the
// same snapshot always yields the same results.
func Evaluate(snap metrics.Snapshot, thresholds []Threshold) []Result {
	if len(thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		results = append(results, evaluateOne(t, snap))
	}
	return results
}

func evaluateOne(t Threshold, snap metrics.Snapshot) Result {
	res := Result{Threshold: t, Metric: t.Metric, Expr: t.expr()}

	agg, ok := snap.Get(t.Metric)
	if !ok || agg.Count == 0 {
		res.Status = StatusMissing
		res.Message = fmt.Sprintf("? %s: no samples recorded", t.Raw)
		return res
	}

	actual, err := extractValue(t, agg)
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("error: %v", err)
		return res
	}

	res.Actual = actual
	res.Pass = compareValues(actual, t.Operator, t.Value)
	mark := "✓"
	res.Status = StatusPass
	if !res.Pass {
		mark = "✗"
		res.Status = StatusFail
	}
	res.Message = fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value)
	return res
}

func (t Threshold) expr() string {
	return fmt.Sprintf("%s%s%s", t.Aggregate, t.Operator, strconv.FormatFloat(t.Value, 'f', -1, 64))
}

var exprPattern = regexp.MustCompile(`^(min|max|avg|med|count|rate|passes|fails|p\(?([0-9]+(?:\.[0-9]+)?)\)?)\s*(<=|>=|==|<|>)\s*(-?[0-9]*\.?[0-9]+)$`)

// Parse builds a Threshold from a metric key and an expression.
// Supported expressions:
// - "p(95)<500"     (latency percentile in ms)
// - "avg<200"       (average latency in ms)
// - "max<=1000"     (max latency in ms)
// - "rate<0.01"     (failure or check rate as decimal, requests/s for counters)
// - "count>0"       (number of samples)
func Parse(key, expr string) (Threshold, error) {
	parsedKey, err := metrics.ParseKey(key)
	if err != nil {
		return Threshold{}, err
	}
	typ, ok := metrics.TypeOf(parsedKey.Name)
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q", parsedKey.Name)
	}

	expr = strings.TrimSpace(expr)
	matches := exprPattern.FindStringSubmatch(expr)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold expression: %q (expected aggregate operator value, e.g. 'p(95)<500')", expr)
	}

	t := Threshold{
		Metric:    parsedKey.String(),
		Key:       parsedKey,
		Aggregate: matches[1],
		Operator:  matches[3],
		Raw:       fmt.Sprintf("%s: %s", parsedKey.String(), expr),
	}
	if matches[2] != "" {
		p, err := strconv.ParseFloat(matches[2], 64)
		if err != nil || p <= 0 || p > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile %q", matches[2])
		}
		t.Percentile = p
		t.Aggregate = fmt.Sprintf("p(%s)", matches[2])
	}
	t.Value, err = strconv.ParseFloat(matches[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[4], err)
	}

	if !aggregateAllowed(typ, t) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s metric %s", t.Aggregate, typ, parsedKey.Name)
	}
	return t, nil
}

// ParseFlag parses "key:expression", where key may carry a {tag:value} set,
// e.g. "http_req_duration{test_type:resize,width:800}:p(95)<500".
func ParseFlag(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	split := -1
	brace := strings.IndexByte(s, '{')
	colon := strings.IndexByte(s, ':')
	if brace >= 0 && (colon < 0 || brace < colon) {
		closing := strings.IndexByte(s, '}')
		if closing < 0 || closing+1 >= len(s) || s[closing+1] != ':' {
			return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric{tags}:expression)", s)
		}
		split = closing + 1
	} else {
		split = colon
	}
	if split <= 0 {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:expression, e.g. 'http_req_failed:rate<0.01')", s)
	}
	t, err := Parse(s[:split], s[split+1:])
	if err != nil {
		return Threshold{}, err
	}
	t.Raw = s
	return t, nil
}

// ParseMultiple parses multiple "key:expression" threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := ParseFlag(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

// ParseSet parses a key -> expressions map. Keys with no expressions are
// returned in reportOnly so callers can still track them as submetrics.
func ParseSet(set map[string][]string) (thresholds []Threshold, reportOnly []metrics.Key, err error) {
	var errors []string
	for _, key := range sortedKeys(set) {
		exprs := set[key]
		if len(exprs) == 0 {
			k, perr := metrics.ParseKey(key)
			if perr != nil {
				errors = append(errors, perr.Error())
				continue
			}
			reportOnly = append(reportOnly, k)
			continue
		}
		for _, expr := range exprs {
			t, perr := Parse(key, expr)
			if perr != nil {
				errors = append(errors, fmt.Sprintf("%s: %v", key, perr))
				continue
			}
			thresholds = append(thresholds, t)
		}
	}
	if len(errors) > 0 {
		return nil, nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}
	return thresholds, reportOnly, nil
}

// Keys returns the metric keys referenced by thresholds.
func Keys(thresholds []Threshold) []metrics.Key {
	keys := make([]metrics.Key, 0, len(thresholds))
	for _, t := range thresholds {
		keys = append(keys, t.Key)
	}
	return keys
}

func aggregateAllowed(typ metrics.MetricType, t Threshold) bool {
	switch typ {
	case metrics.TypeTrend:
		switch t.Aggregate {
		case "min", "max", "avg", "med", "count":
			return true
		}
		return t.Percentile > 0
	case metrics.TypeRate:
		switch t.Aggregate {
		case "rate", "passes", "fails", "count":
			return true
		}
	case metrics.TypeCounter:
		switch t.Aggregate {
		case "rate", "count":
			return true
		}
	}
	return false
}

func extractValue(t Threshold, agg metrics.Aggregate) (float64, error) {
	if t.Percentile > 0 {
		if agg.Trend == nil {
			return 0, fmt.Errorf("%s has no trend data", t.Metric)
		}
		return agg.Trend.Percentile(t.Percentile), nil
	}
	switch t.Aggregate {
	case "count":
		return float64(agg.Count), nil
	case "rate":
		return agg.Rate, nil
	case "passes":
		return float64(agg.Passes), nil
	case "fails":
		return float64(agg.Fails), nil
	}
	if agg.Trend == nil {
		return 0, fmt.Errorf("%s has no trend data", t.Metric)
	}
	switch t.Aggregate {
	case "min":
		return agg.Trend.Min, nil
	case "max":
		return agg.Trend.Max, nil
	case "avg":
		return agg.Trend.Avg, nil
	case "med":
		return agg.Trend.Med, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", t.Aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
