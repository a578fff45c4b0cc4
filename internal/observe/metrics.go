// Package observe provides application-wide observability primitives for
// Vox-Voice: OpenTelemetry metrics, distributed tracing, and structured
// logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via a standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vox metrics.
const meterName = "github.com/Jas0nOW/Vox-Voice"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-stage pipeline latency. Use with attribute:
	//   attribute.String("stage", "wake"|"vad"|"stt"|"router"|"llm"|"tts")
	StageDuration metric.Float64Histogram

	// SessionDuration tracks full wake-to-speak session latency.
	SessionDuration metric.Float64Histogram

	// EventsPublished counts envelopes handed to the event bus.
	EventsPublished metric.Int64Counter

	// EventsDropped counts envelopes dropped by the per-subscriber
	// drop-oldest policy. Attribute: attribute.String("reason", "oldest"|"newest").
	EventsDropped metric.Int64Counter

	// CommandsHandled counts inbound commands by type.
	CommandsHandled metric.Int64Counter

	// AdapterErrors counts adapter failures surfaced as error_raised events.
	// Attribute: attribute.String("component", ...).
	AdapterErrors metric.Int64Counter

	// ActiveSessions tracks the number of live sessions (0 or 1 by invariant).
	ActiveSessions metric.Int64UpDownCounter

	// BusSubscribers tracks the number of registered event-bus subscribers.
	BusSubscribers metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("vox.stage.duration",
		metric.WithDescription("Latency of one pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionDuration, err = m.Float64Histogram("vox.session.duration",
		metric.WithDescription("End-to-end wake-to-speak session latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.EventsPublished, err = m.Int64Counter("vox.bus.events_published",
		metric.WithDescription("Total envelopes published to the event bus."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("vox.bus.events_dropped",
		metric.WithDescription("Envelopes dropped by the per-subscriber overflow policy."),
	); err != nil {
		return nil, err
	}
	if met.CommandsHandled, err = m.Int64Counter("vox.commands_handled",
		metric.WithDescription("Inbound commands dispatched, by type."),
	); err != nil {
		return nil, err
	}
	if met.AdapterErrors, err = m.Int64Counter("vox.adapter.errors",
		metric.WithDescription("Adapter failures surfaced as error_raised events."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("vox.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.BusSubscribers, err = m.Int64UpDownCounter("vox.bus.subscribers",
		metric.WithDescription("Registered event-bus subscribers."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics init: " + err.Error())
		}
	})
	return defaultMetrics
}
