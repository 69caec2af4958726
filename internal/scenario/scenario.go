// Package scenario describes the constant-arrival-rate scenarios a run
// executes and builds the HTTP request for every attempt.
package scenario

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/pixelfire/internal/config"
	"github.com/torosent/pixelfire/internal/fixture"
)

// ErrInvalidScenario is returned when a Spec cannot be run.
var ErrInvalidScenario = errors.New("invalid scenario")

// Environment keys understood by the builders.
const (
	EnvWidth        = "WIDTH"
	EnvFormat       = "FORMAT"
	EnvDistribution = "DISTRIBUTION"
)

// Tag keys attached to every request.
const (
	TagTestType     = "test_type"
	TagDistribution = "distribution"
	TagFormat       = "format"
	TagWidth        = "width"
)

// Env carries per-scenario parameters to its Builder.
type Env map[string]string

// Get returns the value for key, or fallback when unset or blank.
func (e Env) Get(key, fallback string) string {
	if v := strings.TrimSpace(e[key]); v != "" {
		return v
	}
	return fallback
}

// Request is one attempt's HTTP request. It is built fresh per attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Tags   map[string]string
	Checks []Check
}

// Response is what the executor observed for a Request.
type Response struct {
	StatusCode int
	Header     http.Header
	Duration   time.Duration
	Bytes      int64
}

// Check is a named pass/fail assertion on a response.
type Check struct {
	Name string
	Fn   func(*Response) bool
}

// EvaluateChecks runs every check against resp.
func EvaluateChecks(checks []Check, resp *Response) map[string]bool {
	if len(checks) == 0 || resp == nil {
		return nil
	}
	out := make(map[string]bool, len(checks))
	for _, c := range checks {
		out[c.Name] = c.Fn != nil && c.Fn(resp)
	}
	return out
}

// Builder produces the request for one attempt.
type Builder interface {
	Build(env Env) (Request, error)
	// RequiredClasses lists the fixture classes Build may sample for env.
	RequiredClasses(env Env) []fixture.Class
}

// Spec is one named scenario.
type Spec struct {
	Name         string
	Family       config.Family
	Variant      string
	Rate         float64
	TimeUnit     time.Duration
	Duration     time.Duration
	MinWorkers   int
	MaxWorkers   int
	GracePeriod  time.Duration
	ThinkTime    time.Duration
	ResponseTime time.Duration
	Env          Env
	Tags         map[string]string
	Builder      Builder
}

// Validate reports every unusable field, wrapped in ErrInvalidScenario.
func (s Spec) Validate() error {
	var issues []string
	if strings.TrimSpace(s.Name) == "" {
		issues = append(issues, "name is required")
	}
	if s.Rate <= 0 {
		issues = append(issues, "rate must be greater than zero")
	}
	if s.TimeUnit <= 0 {
		issues = append(issues, "time unit must be greater than zero")
	}
	if s.Duration <= 0 {
		issues = append(issues, "duration must be greater than zero")
	}
	if s.MinWorkers < 0 {
		issues = append(issues, "min workers must be non-negative")
	}
	if s.MaxWorkers <= 0 {
		issues = append(issues, "max workers must be greater than zero")
	} else if s.MaxWorkers < s.MinWorkers {
		issues = append(issues, "max workers must be >= min workers")
	}
	if s.GracePeriod < 0 || s.ThinkTime < 0 {
		issues = append(issues, "grace period and think time must be non-negative")
	}
	if s.Builder == nil {
		issues = append(issues, "builder is required")
	}
	if len(issues) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidScenario, s.Name, strings.Join(issues, "; "))
	}
	return nil
}

// TickInterval is the time between consecutive attempts.
func (s Spec) TickInterval() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(s.TimeUnit) / s.Rate)
}

// ExpectedAttempts is Rate x Duration / TimeUnit, rounded down.
func (s Spec) ExpectedAttempts() int64 {
	if s.TimeUnit <= 0 {
		return 0
	}
	return int64(s.Rate * float64(s.Duration) / float64(s.TimeUnit))
}
