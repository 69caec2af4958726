package metrics

// MetricType determines how samples are aggregated.
type MetricType string

const (
	TypeCounter MetricType = "counter"
	TypeRate    MetricType = "rate"
	TypeTrend   MetricType = "trend"
)

const (
	MetricHTTPReqs            = "http_reqs"
	MetricHTTPReqDuration     = "http_req_duration"
	MetricHTTPReqFailed       = "http_req_failed"
	MetricChecks              = "checks"
	MetricCounterByTag        = "counter_by_tag"
	MetricIterations          = "iterations"
	MetricDroppedIterations   = "dropped_iterations"
	MetricCancelledIterations = "cancelled_iterations"
)

var builtinTypes = map[string]MetricType{
	MetricHTTPReqs:            TypeCounter,
	MetricHTTPReqDuration:     TypeTrend,
	MetricHTTPReqFailed:       TypeRate,
	MetricChecks:              TypeRate,
	MetricCounterByTag:        TypeCounter,
	MetricIterations:          TypeCounter,
	MetricDroppedIterations:   TypeCounter,
	MetricCancelledIterations: TypeCounter,
}

// TypeOf returns the type of a built-in metric.
func TypeOf(name string) (MetricType, bool) {
	t, ok := builtinTypes[name]
	return t, ok
}
