package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
	"github.com/torosent/pixelfire/internal/metrics"
)

// Registry is the validated, ordered set of scenarios a run executes.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

// NewRegistry validates every spec and rejects duplicate names.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(specs))}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate scenario name %q", ErrInvalidScenario, s.Name)
		}
		r.byName[s.Name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

// Specs returns the registered scenarios in run order.
func (r *Registry) Specs() []Spec {
	return append([]Spec(nil), r.specs...)
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Get looks up a scenario by name.
func (r *Registry) Get(name string) (Spec, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[idx], true
}

// MaxDuration is the longest scenario duration, which bounds the run.
func (r *Registry) MaxDuration() time.Duration {
	var max time.Duration
	for _, s := range r.specs {
		if s.Duration > max {
			max = s.Duration
		}
	}
	return max
}

// Name returns the scenario name for a family variant, e.g.
// source_large_test, format_avif_test or resize_1200_test.
func Name(family config.Family, variant string) string {
	label := variant
	if family != config.FamilySource && family != config.FamilyFormat {
		if w := WidthFor(fixture.Class(variant)); w != "" {
			label = w
		}
	}
	return fmt.Sprintf("%s_%s_test", family, label)
}

// FromConfig builds the registry for every enabled variant of cfg that
// passes cfg.ScenarioFilter. Each builder's fixture classes must be non-empty.
func FromConfig(cfg *config.Config, provider *fixture.Provider) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("fixture provider is required")
	}
	target := Target{BaseURL: cfg.BaseURL, PathPrefix: cfg.PathPrefix}
	filter := newNameFilter(cfg.ScenarioFilter)

	var specs []Spec
	for _, family := range config.Families {
		fc, ok := cfg.Scenarios[family]
		if !ok {
			continue
		}
		for _, variant := range fc.SortedVariants(family) {
			v := fc.Variants[variant]
			if !v.Enabled {
				continue
			}
			name := Name(family, variant)
			if !filter.match(family, name) {
				continue
			}
			responseTime := fc.ResponseTime(variant)
			builder, err := NewBuilder(family, target, provider, cfg.Distribution, responseTime)
			if err != nil {
				return nil, err
			}
			env, tags := variantEnv(family, variant)
			spec := Spec{
				Name:         name,
				Family:       family,
				Variant:      variant,
				Rate:         v.Rate,
				TimeUnit:     v.TimeUnit,
				Duration:     v.Duration,
				MinWorkers:   v.MinWorkers,
				MaxWorkers:   v.MaxWorkers,
				GracePeriod:  cfg.EffectiveGracePeriod(),
				ThinkTime:    cfg.ThinkTime,
				ResponseTime: responseTime,
				Env:          env,
				Tags:         tags,
				Builder:      builder,
			}
			if err := requireFixtures(spec, provider.Set()); err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	if len(specs) == 0 {
		if len(cfg.ScenarioFilter) > 0 {
			return nil, fmt.Errorf("%w: no enabled scenario matches %s", ErrInvalidScenario, strings.Join(cfg.ScenarioFilter, ","))
		}
		return nil, fmt.Errorf("%w: no scenario enabled", ErrInvalidScenario)
	}
	return NewRegistry(specs...)
}

func variantEnv(family config.Family, variant string) (Env, map[string]string) {
	tags := map[string]string{TagTestType: string(family)}
	switch family {
	case config.FamilySource:
		tags[TagDistribution] = variant
		return Env{EnvDistribution: variant}, tags
	case config.FamilyFormat:
		tags[TagFormat] = variant
		return Env{EnvFormat: variant}, tags
	default:
		width := WidthFor(fixture.Class(variant))
		tags[TagWidth] = width
		return Env{EnvWidth: width}, tags
	}
}

func requireFixtures(spec Spec, set *fixture.Set) error {
	for _, class := range spec.Builder.RequiredClasses(spec.Env) {
		if set.Len(class) == 0 {
			return fmt.Errorf("scenario %s: %w: class %s has no entries", spec.Name, fixture.ErrEmptyFixtureSet, class)
		}
	}
	return nil
}

type nameFilter map[string]bool

func newNameFilter(names []string) nameFilter {
	if len(names) == 0 {
		return nil
	}
	f := nameFilter{}
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			f[n] = true
		}
	}
	return f
}

// match accepts a scenario by its full name or by its family name.
func (f nameFilter) match(family config.Family, name string) bool {
	if len(f) == 0 {
		return true
	}
	return f[strings.ToLower(name)] || f[strings.ToLower(string(family))]
}

// DefaultThresholds returns the threshold set every run carries: the global
// failure rate plus a p(95) latency bound and a report-only request counter
// per scenario tag set. Keys map to expressions; an empty list marks a
// submetric that is reported but not asserted.
func DefaultThresholds(cfg *config.Config, reg *Registry) map[string][]string {
	out := map[string][]string{
		metrics.MetricHTTPReqFailed: {"rate<" + strconv.FormatFloat(cfg.FailureRate, 'f', -1, 64)},
	}
	for _, s := range reg.Specs() {
		p95 := fmt.Sprintf("p(95)<%d", s.ResponseTime.Milliseconds())
		for _, tags := range thresholdTagSets(s) {
			out[tagKey(metrics.MetricHTTPReqDuration, tags)] = []string{p95}
			out[tagKey(metrics.MetricCounterByTag, tags)] = nil
		}
		if s.Family == config.FamilyCdnCgi {
			out[tagKey(metrics.MetricCounterByTag, map[string]string{TagTestType: string(s.Family)})] = nil
		}
	}
	return out
}

// thresholdTagSets expands spec tags over the formats a family draws per attempt.
func thresholdTagSets(s Spec) []map[string]string {
	if s.Family != config.FamilyResizeFormat && s.Family != config.FamilyCdnCgi {
		return []map[string]string{s.Tags}
	}
	sets := make([]map[string]string, 0, len(Formats))
	for _, f := range Formats {
		tags := make(map[string]string, len(s.Tags)+1)
		for k, v := range s.Tags {
			tags[k] = v
		}
		tags[TagFormat] = f
		sets = append(sets, tags)
	}
	return sets
}

func tagKey(metric string, tags map[string]string) string {
	return metrics.NewKey(metric, tags).String()
}
