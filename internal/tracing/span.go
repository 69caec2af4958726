package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	attrMethod     = attribute.Key("http.request.method")
	attrURL        = attribute.Key("url.full")
	attrStatusCode = attribute.Key("http.response.status_code")
	attrScenario   = attribute.Key("pixelfire.scenario")
)

// StartAttemptSpan opens a client span named "<scenario> <method>", or just
// the method when scenario is empty.
func StartAttemptSpan(ctx context.Context, tracer trace.Tracer, scenario, method, url string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attrMethod.String(method), attrURL.String(url)}
	name := method
	if scenario != "" {
		name = scenario + " " + method
		attrs = append(attrs, attrScenario.String(scenario))
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// StatusCode tags a span with the response status.
func StatusCode(code int) attribute.KeyValue {
	return attrStatusCode.Int(code)
}

// EndSpan sets attrs and the span status, then ends it.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	defer span.End()
	span.SetAttributes(attrs...)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// InjectHTTPHeaders writes the traceparent for ctx's span into h.
func InjectHTTPHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}
