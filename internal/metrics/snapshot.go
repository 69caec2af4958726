package metrics

import (
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Aggregate is the immutable summary of one metric key.
// For rate metrics Passes counts non-zero samples and Rate is Passes/Count;
// for counters Rate is Count per second of elapsed run time.
type Aggregate struct {
	Key    string            `json:"key"`
	Metric string            `json:"metric"`
	Tags   map[string]string `json:"tags,omitempty"`
	Type   MetricType        `json:"type"`
	Count  int64             `json:"count"`
	Rate   float64           `json:"rate"`
	Passes int64             `json:"passes,omitempty"`
	Fails  int64             `json:"fails,omitempty"`
	Trend  *TrendStats       `json:"trend,omitempty"`
}

// TrendStats summarises a latency trend in milliseconds.
type TrendStats struct {
	Min float64 `json:"min"`
	Avg float64 `json:"avg"`
	Med float64 `json:"med"`
	Max float64 `json:"max"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`

	hist *hdrhistogram.Histogram
}

// Percentile returns the q-th percentile (0-100) in milliseconds.
func (t *TrendStats) Percentile(q float64) float64 {
	if t == nil || t.hist == nil || t.hist.TotalCount() == 0 {
		return 0
	}
	us := t.hist.ValueAtQuantile(q)
	return float64(us) / 1000
}

// Snapshot is a point-in-time copy of every series held by a Collector.
type Snapshot struct {
	Elapsed  time.Duration        `json:"-"`
	Metrics  map[string]Aggregate `json:"metrics"`
	Errors   map[string]int       `json:"errors,omitempty"`
	Statuses []StatusBucket       `json:"statuses,omitempty"`
}

// Get returns the aggregate stored under key. Tag order in key does not matter.
func (s Snapshot) Get(key string) (Aggregate, bool) {
	if agg, ok := s.Metrics[key]; ok {
		return agg, true
	}
	parsed, err := ParseKey(key)
	if err != nil {
		return Aggregate{}, false
	}
	agg, ok := s.Metrics[parsed.String()]
	return agg, ok
}

// Keys returns every key in the snapshot, sorted.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Metrics))
	for k := range s.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
