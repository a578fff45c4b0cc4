package observe

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers for the vox
// process.
type ProviderConfig struct {
	// ServiceName is reported as service.name. Default: "vox".
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// TraceExporter receives finished spans. When nil, spans are recorded
	// in-process but never exported; the gateway still serves metrics. Set
	// an OTLP exporter here to ship session and stage spans to a collector.
	TraceExporter sdktrace.SpanExporter
}

// ShutdownFunc flushes and closes the telemetry providers. Call it in a
// defer from main with a short deadline.
type ShutdownFunc func(context.Context) error

// InitProvider wires the global OTel providers: a meter provider bridged to
// Prometheus (scraped through [MetricsHandler]) and a tracer provider with
// the configured exporter. The engine's per-session Chrome traces are
// separate from this; OTel spans cover the live process, Chrome traces the
// archived run.
func InitProvider(_ context.Context, cfg ProviderConfig) (ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	mp, mpShutdown, err := newMeterProvider(res)
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp)

	tp, tpShutdown := newTracerProvider(res, cfg.TraceExporter)
	otel.SetTracerProvider(tp)

	shutdown := func(ctx context.Context) error {
		return errors.Join(tpShutdown(ctx), mpShutdown(ctx))
	}
	return shutdown, nil
}

// MetricsHandler returns the HTTP handler that serves the Prometheus
// scrape endpoint backed by the exporter installed in [InitProvider].
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func newResource(cfg ProviderConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "vox"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}

func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, ShutdownFunc, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	return mp, mp.Shutdown, nil
}

func newTracerProvider(res *resource.Resource, exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, ShutdownFunc) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	return tp, tp.Shutdown
}
