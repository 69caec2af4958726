package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/pixelfire/internal/config"
)

// loadArgs parses args the way the pixelfire commands do and loads a Config.
func loadArgs(t *testing.T, args []string) (*config.Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "pixelfire"}
	config.RegisterFlags(cmd)
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return config.NewLoader().LoadFlags(cmd.Flags())
}

const sampleYAML = `
base_url: http://localhost:8080
path_prefix: /project
fixtures:
  large: [/l.jpg]
  medium: [/m.jpg]
  small: [/s.jpg]
request_timeout: 20s
scenarios:
  source:
    response_time: 600
    large:
      rate: 10
      time_unit: 1s
      preAllocatedVUs: 5
      maxVUs: 20
      duration: 30s
  cdnCgi:
    small:
      rate: 2
      duration: 1m
      min_workers: 1
      max_workers: 4
      response_time: 700
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadConfigFileYAML(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPathPrefix, "")
	path := writeConfig(t, "config.yaml", sampleYAML)

	cfg, err := loadArgs(t, []string{"--config", path})
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.RequestTimeout != 20*time.Second {
		t.Errorf("RequestTimeout = %v, want 20s", cfg.RequestTimeout)
	}
	if cfg.EffectiveGracePeriod() != 20*time.Second {
		t.Errorf("EffectiveGracePeriod = %v, want request timeout", cfg.EffectiveGracePeriod())
	}
	if cfg.SummaryFormat != "" {
		t.Errorf("SummaryFormat = %q, want empty so the export extension decides", cfg.SummaryFormat)
	}
	cdn, ok := cfg.Scenarios[config.FamilyCdnCgi]
	if !ok {
		t.Fatalf("cdnCgi family not parsed: %v", cfg.Scenarios)
	}
	if v := cdn.Variants["small"]; v.Rate != 2 || v.Duration != time.Minute || v.MaxWorkers != 4 {
		t.Errorf("cdnCgi small = %+v", v)
	}
	if got := cfg.Scenarios[config.FamilySource].ResponseTime("large"); got != 600*time.Millisecond {
		t.Errorf("source large response time = %v, want 600ms", got)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPathPrefix, "")
	path := writeConfig(t, "config.json", `{
		"baseUrl": "https://cdn.example.com",
		"pathPrefix": "/p",
		"fixtures": "images.yaml",
		"scenarios": {"format": {"response_time": 400, "avif": {"rate": 5, "timeUnit": "1s", "duration": "10s", "preAllocatedVUs": 1, "maxVUs": 5}}}
	}`)

	cfg, err := loadArgs(t, []string{"--config", path})
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}
	if cfg.BaseURL != "https://cdn.example.com" || cfg.PathPrefix != "/p" {
		t.Errorf("target = %q %q", cfg.BaseURL, cfg.PathPrefix)
	}
	if cfg.Fixtures.File != "images.yaml" {
		t.Errorf("Fixtures.File = %q", cfg.Fixtures.File)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestEnvironmentOverridesFileAndFlagsOverrideEnvironment(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)
	t.Setenv(config.EnvBaseURL, "http://from-env:9000")
	t.Setenv(config.EnvPathPrefix, "/env")

	cfg, err := loadArgs(t, []string{"--config", path})
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}
	if cfg.BaseURL != "http://from-env:9000" {
		t.Errorf("BaseURL = %q, want env override", cfg.BaseURL)
	}
	if cfg.PathPrefix != "/env" {
		t.Errorf("PathPrefix = %q, want env override", cfg.PathPrefix)
	}

	cfg, err = loadArgs(t, []string{"--config", path, "--base-url", "http://from-flag"})
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}
	if cfg.BaseURL != "http://from-flag" {
		t.Errorf("BaseURL = %q, want flag override", cfg.BaseURL)
	}
}

func TestDurationOverrideAppliesToAllScenarios(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPathPrefix, "")
	path := writeConfig(t, "config.yaml", sampleYAML)

	cfg, err := loadArgs(t, []string{"--config", path, "--duration", "5s"})
	if err != nil {
		t.Fatalf("LoadFlags() error = %v", err)
	}
	for family, fc := range cfg.Scenarios {
		for name, v := range fc.Variants {
			if v.Duration != 5*time.Second {
				t.Errorf("%s.%s duration = %v, want 5s", family, name, v.Duration)
			}
		}
	}
}

func TestValidateReportsIssues(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "not-a-url"
	cfg.FailureRate = 2
	cfg.ArrivalModel = "bursty"
	cfg.SummaryFormat = "xml"
	cfg.Scenarios[config.FamilyResize] = config.FamilyConfig{
		Variants: map[string]config.VariantConfig{
			"medium": {Enabled: true, Rate: 0, TimeUnit: time.Second, Duration: time.Second, MinWorkers: 5, MaxWorkers: 2},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	verr, ok := err.(config.ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	joined := strings.Join(verr.Issues(), "\n")
	for _, want := range []string{
		"base_url must be an absolute",
		"fixtures must reference",
		"arrival_model",
		"failure_rate",
		"scenarios.resize.medium: rate must be greater than zero",
		"max_workers must be >= min_workers",
		"summary_format",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("issues missing %q:\n%s", want, joined)
		}
	}
}

func TestValidateRequiresEnabledScenario(t *testing.T) {
	cfg := config.Default()
	cfg.BaseURL = "http://localhost"
	cfg.Fixtures.File = "f.yaml"
	cfg.Scenarios[config.FamilySource] = config.FamilyConfig{
		Variants: map[string]config.VariantConfig{"large": {Enabled: false}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "at least one scenario") {
		t.Fatalf("Validate() error = %v, want missing scenario issue", err)
	}
}

func TestParseFamily(t *testing.T) {
	for input, want := range map[string]config.Family{
		"resizeformat": config.FamilyResizeFormat,
		"CDNCGI":       config.FamilyCdnCgi,
		"source":       config.FamilySource,
	} {
		got, err := config.ParseFamily(input)
		if err != nil {
			t.Fatalf("ParseFamily(%q) error = %v", input, err)
		}
		if got != want {
			t.Errorf("ParseFamily(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := config.ParseFamily("crop"); err == nil {
		t.Error("ParseFamily(crop) expected error")
	}
}
