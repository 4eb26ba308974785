// Package otel holds the OpenTelemetry wiring: provider setup, an
// instrumented database handle and tracing decorators for the ports.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted in Config.Exporter.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // "development" or "production"
	Exporter       string // "otlp", "stdout" or "none"
	Insecure       bool   // plain HTTP to the OTLP collector

	// SampleRatio is the fraction of root traces kept, in [0, 1].
	SampleRatio float64
	// Output receives stdout exporter data. Defaults to os.Stdout.
	Output io.Writer
}

// ConfigFromEnv reads OTEL_* variables. Telemetry is not exported unless
// OTEL_EXPORTER says so.
func ConfigFromEnv() Config {
	env := envOrDefault("OTEL_ENVIRONMENT", "development")
	return Config{
		ServiceName:    envOrDefault("OTEL_SERVICE_NAME", "apiplane"),
		ServiceVersion: envOrDefault("OTEL_SERVICE_VERSION", "0.1.0"),
		Environment:    env,
		Exporter:       envOrDefault("OTEL_EXPORTER", ExporterNone),
		Insecure:       env == "development",
		SampleRatio:    ratioOrDefault("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

// Providers are the globally registered tracer and meter providers.
type Providers struct {
	tracer *trace.TracerProvider
	meter  *metric.MeterProvider
}

// Shutdown flushes pending telemetry. Call it once on exit.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}
	if err := p.meter.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// Setup creates the tracer and meter providers for cfg and registers them
// globally along with W3C trace context and baggage propagation.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	spans, err := spanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	metrics, err := metricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	traceOpts := []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	// Without an exporter spans are still created so propagation works.
	if spans != nil {
		traceOpts = append(traceOpts, trace.WithBatcher(spans))
	}

	meterOpts := []metric.Option{metric.WithResource(res)}
	if metrics != nil {
		meterOpts = append(meterOpts, metric.WithReader(metric.NewPeriodicReader(metrics)))
	}

	p := &Providers{
		tracer: trace.NewTracerProvider(traceOpts...),
		meter:  metric.NewMeterProvider(meterOpts...),
	}

	otel.SetTracerProvider(p.tracer)
	otel.SetMeterProvider(p.meter)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return p, nil
}

// spanExporter returns nil for ExporterNone.
func spanExporter(ctx context.Context, cfg Config) (trace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(cfg.Output), stdouttrace.WithPrettyPrint())
	case ExporterNone:
		return nil, nil
	default:
		return nil, unsupportedExporter(cfg.Exporter)
	}
}

// metricExporter returns nil for ExporterNone.
func metricExporter(ctx context.Context, cfg Config) (metric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		var opts []otlpmetrichttp.Option
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case ExporterStdout:
		return stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output))
	case ExporterNone:
		return nil, nil
	default:
		return nil, unsupportedExporter(cfg.Exporter)
	}
}

func unsupportedExporter(name string) error {
	return fmt.Errorf("unsupported exporter %q (use %q, %q or %q)", name, ExporterOTLP, ExporterStdout, ExporterNone)
}

func ratioOrDefault(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 || v > 1 {
		return fallback
	}
	return v
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
