// Package observe provides application-wide observability primitives for
// pesu: OpenTelemetry metrics, tracing helpers, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pesu metrics.
const meterName = "github.com/karkuvel/pesu"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ConnectDuration tracks how long establishing a model session takes.
	ConnectDuration metric.Float64Histogram

	// ConnectAttempts counts dial attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	ConnectAttempts metric.Int64Counter

	// FramesSent counts microphone windows delivered upstream.
	FramesSent metric.Int64Counter

	// FramesReceived counts model audio chunks received downstream.
	FramesReceived metric.Int64Counter

	// DecodeFailures counts model audio chunks dropped as undecodable.
	DecodeFailures metric.Int64Counter

	// Interruptions counts barge-in events (user spoke over the model).
	Interruptions metric.Int64Counter

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
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

	if met.ConnectDuration, err = m.Float64Histogram("pesu.connect.duration",
		metric.WithDescription("Time to establish a model session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ConnectAttempts, err = m.Int64Counter("pesu.connect.attempts",
		metric.WithDescription("Total session dial attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.FramesSent, err = m.Int64Counter("pesu.frames.sent",
		metric.WithDescription("Microphone windows delivered upstream."),
	); err != nil {
		return nil, err
	}
	if met.FramesReceived, err = m.Int64Counter("pesu.frames.received",
		metric.WithDescription("Model audio chunks received downstream."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("pesu.decode.failures",
		metric.WithDescription("Model audio chunks dropped as undecodable."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("pesu.interruptions",
		metric.WithDescription("Barge-in events."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("pesu.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("pesu.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordConnectAttempt records one dial attempt with its outcome and latency.
func (m *Metrics) RecordConnectAttempt(ctx context.Context, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ConnectAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.ConnectDuration.Record(ctx, d.Seconds())
}
