package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/torosent/pixelfire/internal/scenario"
)

// ErrCapacityExceeded marks a tick that found every worker busy.
var ErrCapacityExceeded = errors.New("capacity exceeded: all workers busy")

// ErrTickMissed marks a tick skipped because the tick loop itself stalled.
var ErrTickMissed = errors.New("tick missed: scheduler fell behind")

// HTTPError represents an HTTP request failure with status details.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// loggingExecutor wraps an Executor with failure logging.
type loggingExecutor struct {
	inner  Executor
	logger *zap.Logger
}

// WithLogging wraps an Executor to log transport errors and non-2xx responses.
func WithLogging(exec Executor, logger *zap.Logger) Executor {
	if logger == nil {
		return exec
	}
	return &loggingExecutor{
		inner:  exec,
		logger: logger,
	}
}

func (l *loggingExecutor) Do(ctx context.Context, req scenario.Request) (*scenario.Response, error) {
	resp, err := l.inner.Do(ctx, req)
	switch {
	case err != nil && ctx.Err() == nil:
		l.logger.Warn("request failed", zap.String("url", req.URL), zap.Error(err))
	case resp != nil && !successStatus(resp.StatusCode):
		l.logger.Debug("unexpected status",
			zap.String("url", req.URL),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", resp.Duration),
		)
	}
	return resp, err
}

func successStatus(code int) bool {
	return code >= 200 && code < 300
}
