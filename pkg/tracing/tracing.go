// Package tracing sets up OpenTelemetry tracing and starts spans for remote operations.
//
// Until Init is called, spans go to the global no-op provider.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentation = "github.com/opst/gdsremote"

// Exporters
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
)

type Config struct {
	// Exporter is one of "none", "stdout" or "otlphttp". Empty means "none".
	Exporter string

	// Endpoint of OTLP/HTTP collector, like "http://localhost:4318".
	Endpoint string

	Headers  map[string]string
	Insecure bool

	// SampleRatio in [0, 1]. Values out of range are clamped.
	SampleRatio float64

	// Writer for "stdout" exporter. nil means os.Stdout.
	Writer io.Writer
}

// FromEnv reads Config from GDS_OTEL_* environment variables.
func FromEnv() Config {
	conf := Config{
		Exporter:    strings.ToLower(strings.TrimSpace(os.Getenv("GDS_OTEL_EXPORTER"))),
		Endpoint:    strings.TrimSpace(os.Getenv("GDS_OTEL_ENDPOINT")),
		Headers:     parseHeaders(os.Getenv("GDS_OTEL_HEADERS")),
		Insecure:    true,
		SampleRatio: 1,
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("GDS_OTEL_INSECURE"))); err == nil {
		conf.Insecure = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("GDS_OTEL_SAMPLER_RATIO")), 64); err == nil {
		conf.SampleRatio = v
	}
	return conf
}

// Init installs the global tracer provider.
//
// # Returns
//
// - func(context.Context) error: shutdown. It flushes pending spans.
//
// - error
func Init(ctx context.Context, service string, conf Config) (func(context.Context) error, error) {
	exp, err := buildExporter(ctx, conf)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(service)))
	if err != nil {
		return nil, err
	}

	ratio := conf.SampleRatio
	if ratio < 0 {
		ratio = 0
	} else if 1 < ratio {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func buildExporter(ctx context.Context, conf Config) (sdktrace.SpanExporter, error) {
	switch conf.Exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		w := conf.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterOTLPHTTP:
		endpoint := conf.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:4318"
		}
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
		if 0 < len(conf.Headers) {
			opts = append(opts, otlptracehttp.WithHeaders(conf.Headers))
		}
		if conf.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", conf.Exporter)
	}
}

func parseHeaders(raw string) map[string]string {
	out := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// Start starts a span with the global tracer provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End ends span, recording err when it is not nil.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
