// Package httpclient sends pixelfire requests to the image service.
//
// [NewClient] creates an HTTP client tuned for load testing with
// configurable timeouts and connection reuse. [Executor] turns a
// scenario.Request into a scenario.Response, tagging every request with an
// X-Request-Id and, optionally, an OpenTelemetry client span:
//
//	exec := httpclient.NewExecutor(httpclient.NewClient(30*time.Second),
//		httpclient.WithTracing(provider.Tracer(), provider.ShouldPropagate()))
//	resp, err := exec.Do(ctx, req)
//
// [Probe] checks that the target answers on /health/ping before a run.
package httpclient
