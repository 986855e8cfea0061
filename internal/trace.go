package internal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"runtime/trace"

	"go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "sliding-sync-client"

// Task is a runtime/trace task and an OTLP span covering one sliding sync round trip.
type Task struct {
	t *trace.Task
	o otrace.Span
}

// SetRound tags the round with the position it was sent from.
func (s *Task) SetRound(pos string, isRestart bool, numLists int) {
	s.o.SetAttributes(
		attribute.String("pos", pos),
		attribute.Bool("restart", isRestart),
		attribute.Int("lists", numLists),
	)
}

// Fail marks the round as failed. Aborted rounds are not failures.
func (s *Task) Fail(err error) {
	s.o.RecordError(err)
	s.o.SetStatus(codes.Error, err.Error())
}

func (s *Task) End() {
	s.t.End()
	s.o.End()
}

// combined runtime/trace region and OTLP span, for work inside a round
type RuntimeTraceOTLPSpan struct {
	region *trace.Region
	span   otrace.Span
}

func (s *RuntimeTraceOTLPSpan) End() {
	s.region.End()
	s.span.End()
}

// Logf logs to the runtime trace and adds an event to the span in ctx.
func Logf(ctx context.Context, category, format string, args ...interface{}) {
	trace.Logf(ctx, category, format, args...)
	otrace.SpanFromContext(ctx).AddEvent(fmt.Sprintf(format, args...), otrace.WithAttributes(
		attribute.String("category", category),
	))
}

func StartSpan(ctx context.Context, name string) (context.Context, *RuntimeTraceOTLPSpan) {
	region := trace.StartRegion(ctx, name)
	newCtx, ospan := otel.Tracer(tracerName).Start(ctx, name)
	return newCtx, &RuntimeTraceOTLPSpan{
		region: region,
		span:   ospan,
	}
}

// StartTask begins a task, one per sliding sync round trip.
func StartTask(ctx context.Context, name string) (context.Context, *Task) {
	ctx, task := trace.NewTask(ctx, name)
	newCtx, ospan := otel.Tracer(tracerName).Start(ctx, name, otrace.WithSpanKind(otrace.SpanKindClient))
	return newCtx, &Task{
		t: task,
		o: ospan,
	}
}

// ConfigureOTLP sends spans to the collector at otlpURL, which must have no path. The returned
// function flushes buffered spans and must be called before exiting.
func ConfigureOTLP(otlpURL, otlpUser, otlpPass, version string) (shutdown func(context.Context) error, err error) {
	parsedOTLPURL, err := url.Parse(otlpURL)
	if err != nil {
		return nil, fmt.Errorf("ConfigureOTLP: %w", err)
	}
	if parsedOTLPURL.Path != "" {
		return nil, fmt.Errorf("ConfigureOTLP: URL %s cannot contain any path segments", otlpURL)
	}
	// plain http is for local collectors
	isInsecure := parsedOTLPURL.Scheme == "http"
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(parsedOTLPURL.Host),
	}
	if isInsecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if otlpPass != "" && otlpUser != "" {
		basic := base64.StdEncoding.EncodeToString([]byte(otlpUser + ":" + otlpPass))
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Basic " + basic,
		}))
	}
	logger.Info().Str("host", parsedOTLPURL.Host).Bool("insecure", isInsecure).Bool("auth", otlpUser != "").Msg("ConfigureOTLP")
	exp, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("ConfigureOTLP: %w", err)
	}
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tracerName),
			attribute.String("version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	// the proxy accepts both traceparent and uber-trace-id, send both
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.Baggage{}, propagation.TraceContext{}, jaeger.Jaeger{},
	))
	return tp.Shutdown, nil
}
