package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Trend histograms track latencies from 1µs up to 60s with 3 significant figures.
const (
	histLowest  = 1
	histHighest = 60_000_000
	histSigFigs = 3
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(histLowest, histHighest, histSigFigs)
}

type sample struct {
	value time.Duration
	hit   bool
}

// series holds the running aggregate of one metric key.
type series struct {
	key Key
	str string
	typ MetricType

	mu    sync.Mutex
	count int64
	hits  int64
	hist  *hdrhistogram.Histogram
	min   time.Duration
	max   time.Duration
	sum   time.Duration
}

func newSeries(key Key, typ MetricType) *series {
	s := &series{key: key, str: key.String(), typ: typ}
	if typ == TypeTrend {
		s.hist = newHistogram()
	}
	return s
}

func (s *series) observe(v sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	switch s.typ {
	case TypeRate:
		if v.hit {
			s.hits++
		}
	case TypeTrend:
		us := v.value.Microseconds()
		if us < s.hist.LowestTrackableValue() {
			us = s.hist.LowestTrackableValue()
		}
		if us > s.hist.HighestTrackableValue() {
			us = s.hist.HighestTrackableValue()
		}
		_ = s.hist.RecordValue(us)
		s.sum += v.value
		if s.count == 1 || v.value < s.min {
			s.min = v.value
		}
		if v.value > s.max {
			s.max = v.value
		}
	}
}

func (s *series) aggregate(elapsed time.Duration) Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg := Aggregate{
		Key:    s.str,
		Metric: s.key.Name,
		Tags:   NewKey(s.key.Name, s.key.Tags).Tags,
		Type:   s.typ,
		Count:  s.count,
	}
	switch s.typ {
	case TypeCounter:
		if elapsed > 0 {
			agg.Rate = float64(s.count) / elapsed.Seconds()
		}
	case TypeRate:
		agg.Passes = s.hits
		agg.Fails = s.count - s.hits
		if s.count > 0 {
			agg.Rate = float64(s.hits) / float64(s.count)
		}
	case TypeTrend:
		agg.Trend = s.trend()
	}
	return agg
}

func (s *series) trend() *TrendStats {
	hist := newHistogram()
	hist.Merge(s.hist)
	t := &TrendStats{hist: hist}
	if s.count == 0 {
		return t
	}
	t.Min = toMillis(s.min)
	t.Max = toMillis(s.max)
	t.Avg = toMillis(time.Duration(int64(s.sum) / s.count))
	t.Med = t.Percentile(50)
	t.P90 = t.Percentile(90)
	t.P95 = t.Percentile(95)
	t.P99 = t.Percentile(99)
	return t
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
