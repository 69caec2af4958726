package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/pixelfire/internal/scenario"
	"github.com/torosent/pixelfire/internal/tracing"
)

// RequestIDHeader carries a unique id per attempt so target logs can be
// matched to load test samples.
const RequestIDHeader = "X-Request-Id"

// DefaultUserAgent identifies pixelfire traffic.
const DefaultUserAgent = "pixelfire/1.0"

func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Executor sends scenario requests over an *http.Client.
type Executor struct {
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
	userAgent string
}

// Option customises an Executor.
type Option func(*Executor)

// WithTracing opens a client span per request and, when propagate is set,
// injects W3C trace headers.
func WithTracing(tracer trace.Tracer, propagate bool) Option {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
		e.propagate = propagate
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(e *Executor) {
		if strings.TrimSpace(ua) != "" {
			e.userAgent = ua
		}
	}
}

// NewExecutor wraps client. A nil client gets NewClient(0).
func NewExecutor(client *http.Client, opts ...Option) *Executor {
	if client == nil {
		client = NewClient(0)
	}
	e := &Executor{
		client:    client,
		tracer:    noop.NewTracerProvider().Tracer(""),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do sends req and reads the whole body. Any status code yields a Response;
// an error means no complete response was received. Duration covers the
// request up to the last body byte.
func (e *Executor) Do(ctx context.Context, req scenario.Request) (*scenario.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := tracing.StartAttemptSpan(ctx, e.tracer, req.Tags[scenario.TagTestType], method, req.URL)

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, nil)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set(RequestIDHeader, uuid.NewString())
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	n, readErr := drainBody(resp.Body)
	elapsed := time.Since(start)
	if readErr != nil {
		tracing.EndSpan(span, readErr, tracing.StatusCode(resp.StatusCode))
		return nil, readErr
	}

	var spanErr error
	if resp.StatusCode >= 400 {
		spanErr = errors.New(resp.Status)
	}
	tracing.EndSpan(span, spanErr, tracing.StatusCode(resp.StatusCode))

	return &scenario.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Duration:   elapsed,
		Bytes:      n,
	}, nil
}
