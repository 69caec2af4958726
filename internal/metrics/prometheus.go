package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder mirrors outcomes into Prometheus collectors so a run can
// be scraped while it is in progress.
type PrometheusRecorder struct {
	attempts      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	checkFailures *prometheus.CounterVec
}

// NewPrometheusRecorder creates the pixelfire collectors and registers them on r.
func NewPrometheusRecorder(r prometheus.Registerer) *PrometheusRecorder {
	p := &PrometheusRecorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pixelfire",
			Name:      "attempts_total",
			Help:      "Scheduled attempts by scenario and outcome",
		}, []string{"scenario", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pixelfire",
			Name:      "request_duration_ms",
			Help:      "Completed request duration in milliseconds",
			Buckets:   timeBuckets(),
		}, []string{"scenario"}),
		checkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pixelfire",
			Name:      "check_failures_total",
			Help:      "Failed response checks by scenario and check name",
		}, []string{"scenario", "check"}),
	}
	r.MustRegister(p.attempts, p.duration, p.checkFailures)
	return p
}

// Record implements Recorder.
func (p *PrometheusRecorder) Record(o Outcome) {
	p.attempts.WithLabelValues(o.Scenario, o.Kind.String()).Inc()
	if o.Kind != KindSuccess && o.Kind != KindRequestFailed {
		return
	}
	p.duration.WithLabelValues(o.Scenario).Observe(toMillis(o.Duration))
	for name, passed := range o.Checks {
		if !passed {
			p.checkFailures.WithLabelValues(o.Scenario, name).Inc()
		}
	}
}

// timeBuckets spans 5ms to 60s, finer at the low end where image responses cluster.
func timeBuckets() []float64 {
	bucket := float64(5)
	buckets := make([]float64, 0, 96)
	for bucket <= 60000 {
		buckets = append(buckets, bucket)
		switch {
		case bucket < 100:
			bucket += 5
		case bucket < 1000:
			bucket += 50
		case bucket < 10000:
			bucket += 500
		default:
			bucket += 5000
		}
	}
	return buckets
}

// Attempts returns the attempts counter for a scenario and outcome kind.
func (p *PrometheusRecorder) Attempts(scenario string, kind Kind) prometheus.Counter {
	return p.attempts.WithLabelValues(scenario, kind.String())
}

// CheckFailures returns the failed-check counter for a scenario and check name.
func (p *PrometheusRecorder) CheckFailures(scenario, check string) prometheus.Counter {
	return p.checkFailures.WithLabelValues(scenario, check)
}
