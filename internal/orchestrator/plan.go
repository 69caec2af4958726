package orchestrator

import (
	"fmt"
	"path/filepath"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
	"github.com/torosent/pixelfire/internal/metrics"
	"github.com/torosent/pixelfire/internal/scenario"
	"github.com/torosent/pixelfire/internal/threshold"
)

// Plan is everything a run needs that can be derived from configuration
// alone, without touching the network.
type Plan struct {
	Fixtures   *fixture.Set
	Provider   *fixture.Provider
	Registry   *scenario.Registry
	Thresholds []threshold.Threshold
	// ReportOnly lists submetrics that are collected and reported but not asserted.
	ReportOnly []metrics.Key
}

// Prepare validates cfg, loads fixtures, builds the scenario registry and
// parses the default and configured thresholds.
func Prepare(cfg *config.Config) (*Plan, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set, err := loadFixtures(cfg)
	if err != nil {
		return nil, err
	}
	provider := fixture.NewProvider(set, cfg.Seed)

	reg, err := scenario.FromConfig(cfg, provider)
	if err != nil {
		return nil, err
	}

	thresholds, reportOnly, err := threshold.ParseSet(scenario.DefaultThresholds(cfg, reg))
	if err != nil {
		return nil, fmt.Errorf("default thresholds: %w", err)
	}
	extra, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	thresholds = append(thresholds, extra...)

	return &Plan{
		Fixtures:   set,
		Provider:   provider,
		Registry:   reg,
		Thresholds: thresholds,
		ReportOnly: reportOnly,
	}, nil
}

// Submetrics returns every key the collector must pre-register.
func (p *Plan) Submetrics() []metrics.Key {
	keys := threshold.Keys(p.Thresholds)
	return append(keys, p.ReportOnly...)
}

// loadFixtures reads the fixtures file, resolved against the config file's
// directory when relative, or builds the set from the inline lists.
func loadFixtures(cfg *config.Config) (*fixture.Set, error) {
	if path := cfg.Fixtures.File; path != "" {
		if !filepath.IsAbs(path) && cfg.ConfigFile != "" {
			path = filepath.Join(filepath.Dir(cfg.ConfigFile), path)
		}
		set, err := fixture.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load fixtures: %w", err)
		}
		return set, nil
	}

	entries := make(map[fixture.Class][]string, len(cfg.Fixtures.Inline))
	for name, paths := range cfg.Fixtures.Inline {
		class, err := fixture.ParseClass(name)
		if err != nil {
			return nil, fmt.Errorf("fixtures: %w", err)
		}
		entries[class] = append(entries[class], paths...)
	}
	return fixture.New(entries), nil
}
