package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/torosent/pixelfire/internal/fixture"
)

// Family identifies a group of scenarios that exercise one endpoint shape.
type Family string

const (
	FamilySource       Family = "source"
	FamilyFormat       Family = "format"
	FamilyResize       Family = "resize"
	FamilyResizeFormat Family = "resizeFormat"
	FamilyCdnCgi       Family = "cdnCgi"
)

// Families lists every supported family in run order.
var Families = []Family{FamilySource, FamilyFormat, FamilyResize, FamilyResizeFormat, FamilyCdnCgi}

// ParseFamily resolves a family name case-insensitively.
func ParseFamily(value string) (Family, error) {
	needle := strings.ToLower(strings.TrimSpace(value))
	for _, f := range Families {
		if strings.ToLower(string(f)) == needle {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown scenario family %q", value)
}

// Variants returns the variant names accepted by a family.
func (f Family) Variants() []string {
	if f == FamilyFormat {
		return []string{"avif", "webp"}
	}
	return []string{string(fixture.Large), string(fixture.Medium), string(fixture.Small)}
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type SummaryFormat string

const (
	SummaryFormatJSON SummaryFormat = "json"
	SummaryFormatCSV  SummaryFormat = "csv"
)

const (
	DefaultRequestTimeout    = 60 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultThresholdInterval = 2 * time.Second
	DefaultFailureRate       = 0.01
	DefaultResponseTimeMs    = 1000

	defaultTimeUnit = time.Second
)

type Config struct {
	BaseURL           string                  `mapstructure:"base_url"`
	PathPrefix        string                  `mapstructure:"path_prefix"`
	Fixtures          FixturesConfig          `mapstructure:"fixtures"`
	RequestTimeout    time.Duration           `mapstructure:"request_timeout"`
	GracePeriod       time.Duration           `mapstructure:"grace_period"`
	ProbeTimeout      time.Duration           `mapstructure:"probe_timeout"`
	Seed              int64                   `mapstructure:"seed"`
	ArrivalModel      ArrivalModel            `mapstructure:"arrival_model"`
	Distribution      fixture.Distribution    `mapstructure:"distribution"`
	FailureRate       float64                 `mapstructure:"failure_rate"`
	ThresholdInterval time.Duration           `mapstructure:"threshold_interval"`
	AbortOnFail       bool                    `mapstructure:"abort_on_fail"`
	ThinkTime         time.Duration           `mapstructure:"think_time"`
	Scenarios         map[Family]FamilyConfig `mapstructure:"scenarios"`
	Thresholds        []string                `mapstructure:"thresholds"`
	ScenarioFilter    []string                `mapstructure:"-"`
	DurationOverride  time.Duration           `mapstructure:"-"`
	Log               LogConfig               `mapstructure:"log"`
	Tracing           TracingConfig           `mapstructure:"tracing"`
	MetricsAddr       string                  `mapstructure:"metrics_addr"`
	SummaryExport     string                  `mapstructure:"summary_export"`
	SummaryFormat     SummaryFormat           `mapstructure:"summary_format"`
	JSONOutput        bool                    `mapstructure:"json_output"`
	NoProgress        bool                    `mapstructure:"no_progress"`
	LogErrors         bool                    `mapstructure:"log_errors"`
	ConfigFile        string                  `mapstructure:"-"`
}

// FixturesConfig points at a fixtures file or carries the lists inline.
type FixturesConfig struct {
	File   string              `mapstructure:"file"`
	Inline map[string][]string `mapstructure:"inline"`
}

// FamilyConfig holds the per-variant scenario settings of one family.
// ResponseTimeMs applies to variants that do not set their own.
type FamilyConfig struct {
	ResponseTimeMs int                      `mapstructure:"response_time_ms"`
	Variants       map[string]VariantConfig `mapstructure:",remain"`
}

// VariantConfig describes one constant-arrival-rate scenario.
type VariantConfig struct {
	Enabled        bool          `mapstructure:"enable"`
	Rate           float64       `mapstructure:"rate"`
	TimeUnit       time.Duration `mapstructure:"time_unit"`
	Duration       time.Duration `mapstructure:"duration"`
	MinWorkers     int           `mapstructure:"min_workers"`
	MaxWorkers     int           `mapstructure:"max_workers"`
	ResponseTimeMs int           `mapstructure:"response_time_ms"`
}

// ResponseTime returns the expected response time of a variant, falling
// back to the family default and then DefaultResponseTimeMs.
func (f FamilyConfig) ResponseTime(variant string) time.Duration {
	ms := DefaultResponseTimeMs
	if f.ResponseTimeMs > 0 {
		ms = f.ResponseTimeMs
	}
	if v, ok := f.Variants[variant]; ok && v.ResponseTimeMs > 0 {
		ms = v.ResponseTimeMs
	}
	return time.Duration(ms) * time.Millisecond
}

// SortedVariants returns the configured variant names in the family's canonical order.
func (f FamilyConfig) SortedVariants(family Family) []string {
	order := map[string]int{}
	for i, v := range family.Variants() {
		order[v] = i
	}
	names := make([]string, 0, len(f.Variants))
	for name := range f.Variants {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return order[names[i]] < order[names[j]] })
	return names
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Endpoint    string            `mapstructure:"endpoint"`
	Protocol    string            `mapstructure:"protocol"`
	Insecure    bool              `mapstructure:"insecure"`
	SampleRate  float64           `mapstructure:"sample_rate"`
	ServiceName string            `mapstructure:"service_name"`
	Headers     map[string]string `mapstructure:"headers"`
	Propagate   bool              `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint has been configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		RequestTimeout:    DefaultRequestTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
		ArrivalModel:      ArrivalModelUniform,
		Distribution:      fixture.DefaultDistribution,
		FailureRate:       DefaultFailureRate,
		ThresholdInterval: DefaultThresholdInterval,
		Scenarios:         map[Family]FamilyConfig{},
		Log:               LogConfig{Level: "info", Format: "console", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 7},
		Tracing:           TracingConfig{Protocol: "grpc", SampleRate: 1.0, ServiceName: "pixelfire"},
	}
}

// EffectiveGracePeriod returns how long in-flight attempts may run after a
// scenario's duration ends. It defaults to the request timeout.
func (c Config) EffectiveGracePeriod() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return c.RequestTimeout
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.BaseURL) == "" {
		issues = append(issues, "base_url is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		issues = append(issues, fmt.Sprintf("base_url must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		issues = append(issues, "path_prefix must start with /")
	}
	if c.Fixtures.File == "" && len(c.Fixtures.Inline) == 0 {
		issues = append(issues, "fixtures must reference a file or list paths inline")
	}
	for class := range c.Fixtures.Inline {
		if _, err := fixture.ParseClass(class); err != nil {
			issues = append(issues, fmt.Sprintf("fixtures: %v", err))
		}
	}
	if c.RequestTimeout <= 0 {
		issues = append(issues, "request_timeout must be greater than zero")
	}
	if c.GracePeriod < 0 {
		issues = append(issues, "grace_period must be non-negative")
	}
	if c.ProbeTimeout <= 0 {
		issues = append(issues, "probe_timeout must be greater than zero")
	}
	if c.ThinkTime < 0 {
		issues = append(issues, "think_time must be non-negative")
	}
	if c.ThresholdInterval < 0 {
		issues = append(issues, "threshold_interval must be non-negative")
	}
	switch c.ArrivalModel {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival_model must be uniform or poisson, got %q", c.ArrivalModel))
	}
	if err := c.Distribution.Validate(); err != nil {
		issues = append(issues, err.Error())
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		issues = append(issues, "failure_rate must be between 0 and 1")
	}
	issues = append(issues, c.validateScenarios()...)

	switch c.SummaryFormat {
	case "", SummaryFormatJSON, SummaryFormatCSV:
	default:
		issues = append(issues, fmt.Sprintf("summary_format must be json or csv, got %q", c.SummaryFormat))
	}
	issues = append(issues, validateLogConfig(c.Log)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (c Config) validateScenarios() []string {
	var issues []string
	enabled := 0
	for _, family := range Families {
		fc, ok := c.Scenarios[family]
		if !ok {
			continue
		}
		if fc.ResponseTimeMs < 0 {
			issues = append(issues, fmt.Sprintf("scenarios.%s.response_time_ms must be non-negative", family))
		}
		for _, name := range fc.SortedVariants(family) {
			v := fc.Variants[name]
			if !v.Enabled {
				continue
			}
			enabled++
			prefix := fmt.Sprintf("scenarios.%s.%s", family, name)
			if v.Rate <= 0 {
				issues = append(issues, prefix+": rate must be greater than zero")
			}
			if v.TimeUnit <= 0 {
				issues = append(issues, prefix+": time_unit must be greater than zero")
			}
			if v.Duration <= 0 {
				issues = append(issues, prefix+": duration must be greater than zero")
			}
			if v.MinWorkers < 0 {
				issues = append(issues, prefix+": min_workers must be non-negative")
			}
			if v.MaxWorkers <= 0 {
				issues = append(issues, prefix+": max_workers must be greater than zero")
			} else if v.MaxWorkers < v.MinWorkers {
				issues = append(issues, prefix+": max_workers must be >= min_workers")
			}
			if v.ResponseTimeMs < 0 {
				issues = append(issues, prefix+": response_time_ms must be non-negative")
			}
		}
	}
	if enabled == 0 {
		issues = append(issues, "at least one scenario must be enabled")
	}
	return issues
}

func validateLogConfig(l LogConfig) []string {
	var issues []string
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format must be console or json, got %q", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		issues = append(issues, "log rotation settings must be non-negative")
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	if !t.Enabled() {
		return nil
	}
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0 and 1")
	}
	return issues
}
