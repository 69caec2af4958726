package httpclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ProbePath is requested on the base URL before load starts.
const ProbePath = "/health/ping"

// ProbeResult describes the liveness probe outcome.
type ProbeResult struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	Reachable  bool          `json:"reachable"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Probe issues GET <baseURL>/health/ping with a few retries. The target
// counts as reachable on 200, and on 404 since many image services do not
// expose the endpoint. The probe never fails the run; callers decide what to
// do with an unreachable result.
func Probe(ctx context.Context, baseURL string, timeout time.Duration, logger *zap.Logger) ProbeResult {
	if logger == nil {
		logger = zap.NewNop()
	}
	url := strings.TrimRight(baseURL, "/") + ProbePath
	res := ProbeResult{URL: url}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient = NewClient(timeout)
	client.Logger = leveledLogger{logger.Sugar()}
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	ctx, cancel := context.WithTimeout(ctx, probeBudget(timeout, client.RetryMax))
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	_, _ = drainBody(resp.Body)

	res.StatusCode = resp.StatusCode
	res.Reachable = resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound
	return res
}

// probeBudget bounds the whole probe, retries included.
func probeBudget(timeout time.Duration, retries int) time.Duration {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return time.Duration(retries+1)*timeout + 2*time.Second
}

// leveledLogger routes retryablehttp logging through zap.
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.s.Warnw(msg, keysAndValues...)
}
