// Package metrics aggregates attempt outcomes into tagged metric series.
//
// Every [Outcome] recorded by a scenario worker is expanded into samples of
// a fixed set of built-in metrics (http_reqs, http_req_duration,
// http_req_failed, checks, counter_by_tag, iterations, dropped_iterations,
// cancelled_iterations). Each sample is tagged with the scenario name and
// the scenario and request tags, and is stored under a [Key]: the metric
// name plus its sorted tag set, written as
//
//	http_req_duration{test_type:resize,width:800}
//
// # Submetrics
//
// A [Collector] created with submetric keys (usually taken from threshold
// definitions) also folds every sample into each registered key whose tags
// are a subset of the sample's tags, so thresholds can target partial tag
// sets without scanning the full series table at evaluation time.
//
// # Thread Safety
//
// Series are spread over hash shards guarded by RW mutexes, and every series
// has its own lock. Record may be called from any number of goroutines;
// [Collector.Snapshot] returns an immutable copy.
package metrics
