package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/hephaestus/protocol"
)

const (
	instrumentationName    = "github.com/felixgeelhaar/hephaestus"
	instrumentationVersion = "0.1.0"
)

// unknownMethod labels payloads whose method could not be read.
const unknownMethod = "unknown"

// Attribute keys set on spans and metrics.
const (
	attrMethod    = attribute.Key("rpc.method")
	attrService   = attribute.Key("service.name")
	attrTool      = attribute.Key("rpc.tool")
	attrTransport = attribute.Key("rpc.transport")
	attrRequestID = attribute.Key("rpc.request_id")
	attrErrorCode = attribute.Key("rpc.error_code")
	attrErrorKind = attribute.Key("rpc.error_kind")
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skip           map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service.name attribute.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods leaves the given methods uninstrumented. Aliases
// are normalized, so skipping "tools.list" also skips "tools/list".
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skip[protocol.CanonicalMethod(m)] = true
		}
	}
}

// instruments are the metrics recorded per exchange. Instrument creation
// errors leave no-op instruments in place.
type instruments struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) instruments {
	var in instruments
	in.requests, _ = meter.Int64Counter("hephaestus.server.requests",
		metric.WithDescription("Contract requests handled"),
		metric.WithUnit("{request}"))
	in.errors, _ = meter.Int64Counter("hephaestus.server.errors",
		metric.WithDescription("Error envelopes returned"),
		metric.WithUnit("{error}"))
	in.duration, _ = meter.Float64Histogram("hephaestus.server.request.duration",
		metric.WithDescription("Time spent producing a response envelope"),
		metric.WithUnit("s"))
	return in
}

// OTel returns middleware that traces each exchange and records request,
// error and latency metrics, keyed by the canonical method name. Error
// envelopes mark the span as failed and carry the error code and kind.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "hephaestus",
		skip:           make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName,
		trace.WithInstrumentationVersion(instrumentationVersion))
	in := newInstruments(cfg.meterProvider.Meter(instrumentationName,
		metric.WithInstrumentationVersion(instrumentationVersion)))

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, payload any) *protocol.Response {
			method := spanMethod(payload)
			if cfg.skip[method] {
				return next(ctx, payload)
			}

			attrs := []attribute.KeyValue{attrMethod.String(method), attrService.String(cfg.serviceName)}
			if tr := protocol.GetRequestMeta(ctx, protocol.MetaTransport); tr != "" {
				attrs = append(attrs, attrTransport.String(tr))
			}

			ctx, span := tracer.Start(ctx, "rpc."+method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			if method == protocol.MethodToolsCall {
				if tool := toolName(payload); tool != "" {
					span.SetAttributes(attrTool.String(tool))
				}
			}
			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attrRequestID.String(reqID))
			}

			set := metric.WithAttributes(attrs...)
			in.requests.Add(ctx, 1, set)
			start := time.Now()

			resp := next(ctx, payload)

			in.duration.Record(ctx, time.Since(start).Seconds(), set)

			if resp == nil || resp.Error == nil {
				span.SetStatus(codes.Ok, "")
				return resp
			}

			span.SetStatus(codes.Error, resp.Error.Message)
			span.SetAttributes(
				attrErrorCode.Int(resp.Error.Code),
				attrErrorKind.String(string(resp.Error.Kind())),
			)
			in.errors.Add(ctx, 1, metric.WithAttributes(append(attrs, attrErrorCode.Int(resp.Error.Code))...))
			return resp
		}
	}
}

func spanMethod(payload any) string {
	method, _ := protocol.Peek(payload)
	if method == "" {
		return unknownMethod
	}
	return protocol.CanonicalMethod(method)
}

// toolName reads params.tool, or "" when it is not a string.
func toolName(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	params, _ := obj["params"].(map[string]any)
	name, _ := params["tool"].(string)
	return name
}

// SpanFromContext returns the current span, or a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
