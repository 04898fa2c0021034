// Package telemetry sets up OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/tjfontaine/polyglot-persona/internal/config"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider when tracing is enabled. Spans go
// to stderr so they do not interleave with the JSON log stream on stdout.
// When tracing is disabled the global no-op provider stays in place.
func Init(cfg config.TelemetryConfig, logger *slog.Logger) (ShutdownFunc, error) {
	if !cfg.Tracing {
		return func(context.Context) error { return nil }, nil
	}
	return InitTracer(cfg.ServiceName, os.Stderr, logger)
}

// InitTracer exports spans to w.
func InitTracer(serviceName string, w io.Writer, logger *slog.Logger) (ShutdownFunc, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))
	return tp.Shutdown, nil
}
