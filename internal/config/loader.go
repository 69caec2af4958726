package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/pixelfire/internal/fixture"
)

// Loader builds a Config from a config file, the environment and flags.
type Loader struct{}

// Environment variables that override the target location from the config file.
const (
	EnvBaseURL    = "BASE_URL"
	EnvPathPrefix = "PATH_PREFIX"
)

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFlags builds a Config from an already parsed flag set. The config file
// named by --config is read first, BASE_URL and PATH_PREFIX override it and
// explicitly set flags win over both.
func (Loader) LoadFlags(flagSet *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := flagSet.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if err := cfgViper.BindEnv("base_url", EnvBaseURL); err != nil {
		return nil, err
	}
	if err := cfgViper.BindEnv("path_prefix", EnvPathPrefix); err != nil {
		return nil, err
	}
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	// base_url and path_prefix resolve to the environment first, then the file.
	if val := strings.TrimSpace(cfgViper.GetString("base_url")); val != "" {
		cfg.BaseURL = val
	}
	if val := strings.TrimSpace(cfgViper.GetString("path_prefix")); val != "" {
		cfg.PathPrefix = val
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.PathPrefix = strings.TrimRight(strings.TrimSpace(c.PathPrefix), "/")
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		c.PathPrefix = "/" + c.PathPrefix
	}
	c.ArrivalModel = ArrivalModel(strings.ToLower(strings.TrimSpace(string(c.ArrivalModel))))
	if c.ArrivalModel == "" {
		c.ArrivalModel = ArrivalModelUniform
	}
	c.SummaryFormat = SummaryFormat(strings.ToLower(strings.TrimSpace(string(c.SummaryFormat))))
	if c.DurationOverride > 0 {
		for family, fc := range c.Scenarios {
			for name, v := range fc.Variants {
				v.Duration = c.DurationOverride
				fc.Variants[name] = v
			}
			c.Scenarios[family] = fc
		}
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("baseUrl: %w", err)
		}
		cfg.BaseURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "pathprefix", "path_prefix", "path-prefix"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("pathPrefix: %w", err)
		}
		cfg.PathPrefix = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "fixtures", "images"); ok {
		fc, err := parseFixtures(raw)
		if err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
		cfg.Fixtures = fc
	}

	if raw, ok := lookupSetting(settings, "requesttimeout", "request_timeout", "request-timeout", "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("requestTimeout: %w", err)
		}
		cfg.RequestTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "graceperiod", "grace_period", "grace-period", "graceful_shutdown"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("gracePeriod: %w", err)
		}
		cfg.GracePeriod = dur
	}

	if raw, ok := lookupSetting(settings, "probetimeout", "probe_timeout", "probe-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("probeTimeout: %w", err)
		}
		cfg.ProbeTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = int64(val)
	}

	if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		cfg.ArrivalModel = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "distribution"); ok {
		d, err := parseDistribution(raw)
		if err != nil {
			return fmt.Errorf("distribution: %w", err)
		}
		cfg.Distribution = d
	}

	if raw, ok := lookupSetting(settings, "failurerate", "failure_rate", "failure-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("failureRate: %w", err)
		}
		cfg.FailureRate = val
	}

	if raw, ok := lookupSetting(settings, "thresholdinterval", "threshold_interval", "threshold-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("thresholdInterval: %w", err)
		}
		cfg.ThresholdInterval = dur
	}

	if raw, ok := lookupSetting(settings, "abortonfail", "abort_on_fail", "abort-on-fail"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("abortOnFail: %w", err)
		}
		cfg.AbortOnFail = val
	}

	if raw, ok := lookupSetting(settings, "thinktime", "think_time", "think-time", "sleep"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("thinkTime: %w", err)
		}
		cfg.ThinkTime = dur
	}

	if raw, ok := lookupSetting(settings, "scenarios"); ok {
		scenarios, err := parseScenarios(raw)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}
		cfg.Scenarios = scenarios
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "log", "logging"); ok {
		lc, err := parseLogConfig(raw, cfg.Log)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		cfg.Log = lc
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	if raw, ok := lookupSetting(settings, "metricsaddr", "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricsAddr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "summaryexport", "summary_export", "summary-export"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summaryExport: %w", err)
		}
		cfg.SummaryExport = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "summaryformat", "summary_format", "summary-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("summaryFormat: %w", err)
		}
		cfg.SummaryFormat = SummaryFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "noprogress", "no_progress", "no-progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("noProgress: %w", err)
		}
		cfg.NoProgress = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	return nil
}

func parseFixtures(value interface{}) (FixturesConfig, error) {
	if value == nil {
		return FixturesConfig{}, nil
	}
	if s, ok := value.(string); ok {
		return FixturesConfig{File: strings.TrimSpace(s)}, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return FixturesConfig{}, err
	}
	var fc FixturesConfig
	if raw, ok := lookupSetting(settings, "file", "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return FixturesConfig{}, fmt.Errorf("file: %w", err)
		}
		fc.File = strings.TrimSpace(val)
		return fc, nil
	}
	fc.Inline = make(map[string][]string, len(settings))
	for key, raw := range settings {
		paths, err := asStringSlice(raw)
		if err != nil {
			return FixturesConfig{}, fmt.Errorf("%s: %w", key, err)
		}
		fc.Inline[key] = paths
	}
	return fc, nil
}

func parseDistribution(value interface{}) (fixture.Distribution, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return fixture.Distribution{}, err
	}
	var d fixture.Distribution
	fields := []struct {
		key string
		dst *float64
	}{
		{key: "large", dst: &d.Large},
		{key: "medium", dst: &d.Medium},
		{key: "small", dst: &d.Small},
	}
	for _, f := range fields {
		if raw, ok := lookupSetting(settings, f.key); ok {
			val, err := asFloat64(raw)
			if err != nil {
				return fixture.Distribution{}, fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = val
		}
	}
	return d, nil
}

// widthAliases lets resize style families name variants by pixel width.
var widthAliases = map[string]string{
	"1200": string(fixture.Large),
	"800":  string(fixture.Medium),
	"400":  string(fixture.Small),
}

func parseScenarios(value interface{}) (map[Family]FamilyConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return nil, err
	}
	result := make(map[Family]FamilyConfig, len(settings))
	for key, raw := range settings {
		family, err := ParseFamily(key)
		if err != nil {
			return nil, err
		}
		fc, err := buildFamilyConfig(family, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", family, err)
		}
		result[family] = fc
	}
	return result, nil
}

func buildFamilyConfig(family Family, value interface{}) (FamilyConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return FamilyConfig{}, err
	}
	fc := FamilyConfig{Variants: map[string]VariantConfig{}}
	allowed := map[string]bool{}
	for _, v := range family.Variants() {
		allowed[v] = true
	}
	for key, raw := range settings {
		switch key {
		case "response_time", "response_time_ms", "responsetime", "responsetimems":
			val, err := asInt(raw)
			if err != nil {
				return FamilyConfig{}, fmt.Errorf("response_time: %w", err)
			}
			fc.ResponseTimeMs = val
			continue
		}
		name := key
		if alias, ok := widthAliases[key]; ok && family != FamilyFormat {
			name = alias
		}
		if !allowed[name] {
			return FamilyConfig{}, fmt.Errorf("unknown variant %q (expected one of %s)", key, strings.Join(family.Variants(), ", "))
		}
		vc, err := buildVariantConfig(raw)
		if err != nil {
			return FamilyConfig{}, fmt.Errorf("%s: %w", name, err)
		}
		fc.Variants[name] = vc
	}
	return fc, nil
}

func buildVariantConfig(value interface{}) (VariantConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return VariantConfig{}, err
	}
	vc := VariantConfig{Enabled: true}

	if raw, ok := lookupSetting(settings, "enable", "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("enable: %w", err)
		}
		vc.Enabled = val
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("rate: %w", err)
		}
		vc.Rate = val
	}
	if raw, ok := lookupSetting(settings, "timeunit", "time_unit", "time-unit"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("timeUnit: %w", err)
		}
		vc.TimeUnit = dur
	} else {
		vc.TimeUnit = defaultTimeUnit
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("duration: %w", err)
		}
		vc.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "preallocatedvus", "min_workers", "minworkers", "min-workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("minWorkers: %w", err)
		}
		vc.MinWorkers = val
	}
	if raw, ok := lookupSetting(settings, "maxvus", "max_workers", "maxworkers", "max-workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("maxWorkers: %w", err)
		}
		vc.MaxWorkers = val
	} else {
		vc.MaxWorkers = vc.MinWorkers
	}
	if raw, ok := lookupSetting(settings, "response_time", "response_time_ms", "responsetime", "responsetimems"); ok {
		val, err := asInt(raw)
		if err != nil {
			return VariantConfig{}, fmt.Errorf("response_time: %w", err)
		}
		vc.ResponseTimeMs = val
	}
	return vc, nil
}

func parseLogConfig(value interface{}, base LogConfig) (LogConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return LogConfig{}, err
	}
	lc := base
	if raw, ok := lookupSetting(settings, "level"); ok {
		val, err := asString(raw)
		if err != nil {
			return LogConfig{}, fmt.Errorf("level: %w", err)
		}
		lc.Level = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "format", "encoding"); ok {
		val, err := asString(raw)
		if err != nil {
			return LogConfig{}, fmt.Errorf("format: %w", err)
		}
		lc.Format = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "file", "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return LogConfig{}, fmt.Errorf("file: %w", err)
		}
		lc.File = strings.TrimSpace(val)
	}
	ints := []struct {
		keys []string
		dst  *int
	}{
		{keys: []string{"maxsizemb", "max_size_mb", "max_size"}, dst: &lc.MaxSizeMB},
		{keys: []string{"maxbackups", "max_backups"}, dst: &lc.MaxBackups},
		{keys: []string{"maxagedays", "max_age_days", "max_age"}, dst: &lc.MaxAgeDays},
	}
	for _, field := range ints {
		if raw, ok := lookupSetting(settings, field.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return LogConfig{}, fmt.Errorf("%s: %w", field.keys[0], err)
			}
			*field.dst = val
		}
	}
	return lc, nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sampleRate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("serviceName: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("headers: %w", err)
		}
		tc.Headers = hdrs
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = val
	}
	return tc, nil
}
