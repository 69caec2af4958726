package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Target flags
	flags.String("base-url", "", "Base URL of the image service (overrides BASE_URL)")
	flags.String("path-prefix", "", "Path prefix inserted before every image path (overrides PATH_PREFIX)")
	flags.String("fixtures", "", "Path to a YAML, JSON or CSV file listing image paths per size class")

	// Load control flags
	flags.DurationP("duration", "d", 0, "Override the duration of every scenario (e.g. 30s, 1m)")
	flags.Duration("request-timeout", DefaultRequestTimeout, "Per-request timeout")
	flags.Duration("grace-period", 0, "Time in-flight requests may finish after a scenario ends (0 = request timeout)")
	flags.Int64("seed", 0, "Random seed for fixture selection (0 = time based)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model used when pacing requests (uniform or poisson)")
	flags.StringSlice("scenario", nil, "Only run the named scenarios (repeatable, e.g. resize_800_test)")

	// Threshold flags
	flags.StringArray("threshold", nil, "Threshold in metric:expression form (repeatable, e.g. 'http_req_duration{test_type:resize}:p(95)<500')")
	flags.Bool("abort-on-fail", false, "Stop the run as soon as a threshold fails")

	// Output flags
	flags.String("summary-export", "", "Write the end-of-run summary to the given file")
	flags.String("summary-format", "", "Summary export format: json or csv (default: from the export file extension)")
	flags.Bool("json-output", false, "Emit JSON formatted report on stdout")
	flags.Bool("no-progress", false, "Disable the periodic progress line")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")

	// Logging flags
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("log-file", "", "Also write logs to this file (rotated)")
	flags.Bool("log-errors", false, "Log each failed request")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint; tracing is disabled when empty")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of attempts to trace (0-1)")
	flags.Bool("tracing-propagate", false, "Inject W3C trace context headers into requests")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strs := []struct {
		name string
		dst  *string
	}{
		{name: "base-url", dst: &cfg.BaseURL},
		{name: "path-prefix", dst: &cfg.PathPrefix},
		{name: "fixtures", dst: &cfg.Fixtures.File},
		{name: "summary-export", dst: &cfg.SummaryExport},
		{name: "metrics-addr", dst: &cfg.MetricsAddr},
		{name: "log-level", dst: &cfg.Log.Level},
		{name: "log-format", dst: &cfg.Log.Format},
		{name: "log-file", dst: &cfg.Log.File},
		{name: "tracing-endpoint", dst: &cfg.Tracing.Endpoint},
		{name: "tracing-protocol", dst: &cfg.Tracing.Protocol},
	}
	for _, f := range strs {
		if !changed(fs, f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}
	if changed(fs, "fixtures") {
		cfg.Fixtures.Inline = nil
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{name: "duration", dst: &cfg.DurationOverride},
		{name: "request-timeout", dst: &cfg.RequestTimeout},
		{name: "grace-period", dst: &cfg.GracePeriod},
	}
	for _, f := range durations {
		if !changed(fs, f.name) {
			continue
		}
		val, err := fs.GetDuration(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{name: "abort-on-fail", dst: &cfg.AbortOnFail},
		{name: "json-output", dst: &cfg.JSONOutput},
		{name: "no-progress", dst: &cfg.NoProgress},
		{name: "log-errors", dst: &cfg.LogErrors},
		{name: "tracing-insecure", dst: &cfg.Tracing.Insecure},
		{name: "tracing-propagate", dst: &cfg.Tracing.Propagate},
	}
	for _, f := range bools {
		if !changed(fs, f.name) {
			continue
		}
		val, err := fs.GetBool(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if changed(fs, "seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if changed(fs, "arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.ArrivalModel = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if changed(fs, "summary-format") {
		val, err := fs.GetString("summary-format")
		if err != nil {
			return err
		}
		cfg.SummaryFormat = SummaryFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if changed(fs, "tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if changed(fs, "scenario") {
		val, err := fs.GetStringSlice("scenario")
		if err != nil {
			return err
		}
		cfg.ScenarioFilter = val
	}
	if changed(fs, "threshold") {
		val, err := fs.GetStringArray("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}

	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs.Lookup(name) != nil && fs.Changed(name)
}
