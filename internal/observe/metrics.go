// Package observe provides the application's observability primitives:
// OpenTelemetry metrics bridged to a Prometheus /metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/tomasrey88/plantavoz"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text latency per job attempt.
	TranscriptionDuration metric.Float64Histogram

	// ExtractionDuration tracks structured-field extraction latency.
	ExtractionDuration metric.Float64Histogram

	// --- Counters ---

	// JobsProcessed counts finished transcription job attempts. Use with
	// attribute: attribute.String("outcome", "completed"|"retried"|"failed")
	JobsProcessed metric.Int64Counter

	// Resolutions counts entity-resolution decisions. Use with attributes:
	//   attribute.String("target", "machine"|"person"), attribute.String("decision", ...)
	Resolutions metric.Int64Counter

	// RecordsCreated counts persisted records. Use with attribute:
	//   attribute.String("type", "task"|"reminder"|"failure_report"|"work_order"|"contact")
	RecordsCreated metric.Int64Counter

	// ExtractionFallbacks counts extraction calls that degraded to the
	// raw-text fallback.
	ExtractionFallbacks metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of jobs waiting in the processing queue.
	QueueDepth metric.Int64UpDownCounter

	// meter is kept for the observable instruments registered after
	// construction, see [Metrics.ObserveActiveSessions].
	meter metric.Meter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// out-of-process transcription and extraction calls.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("plantavoz.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription per job attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("plantavoz.extraction.duration",
		metric.WithDescription("Latency of structured-field extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.JobsProcessed, err = m.Int64Counter("plantavoz.jobs.processed",
		metric.WithDescription("Total transcription job attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Resolutions, err = m.Int64Counter("plantavoz.resolutions",
		metric.WithDescription("Total entity-resolution decisions by target and decision."),
	); err != nil {
		return nil, err
	}
	if met.RecordsCreated, err = m.Int64Counter("plantavoz.records.created",
		metric.WithDescription("Total persisted records by type."),
	); err != nil {
		return nil, err
	}
	if met.ExtractionFallbacks, err = m.Int64Counter("plantavoz.extraction.fallbacks",
		metric.WithDescription("Total extraction calls degraded to the raw-text fallback."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("plantavoz.queue.depth",
		metric.WithDescription("Number of jobs waiting in the processing queue."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// ObserveActiveSessions registers count as the source of the
// plantavoz.active_sessions gauge. Reading the session store on every scrape
// keeps the gauge honest through session replacement and TTL expiry, which a
// counted increment/decrement pair would drift on.
func (m *Metrics) ObserveActiveSessions(count func() int64) error {
	gauge, err := m.meter.Int64ObservableGauge("plantavoz.active_sessions",
		metric.WithDescription("Number of live capture conversations."),
	)
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, count())
		return nil
	}, gauge)
	return err
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordJob records one finished job attempt with its outcome.
func (m *Metrics) RecordJob(ctx context.Context, outcome string) {
	m.JobsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordResolution records one entity-resolution decision.
func (m *Metrics) RecordResolution(ctx context.Context, target, decision string) {
	m.Resolutions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("target", target),
			attribute.String("decision", decision),
		),
	)
}

// RecordCreated records one persisted record of the given type.
func (m *Metrics) RecordCreated(ctx context.Context, recordType string) {
	m.RecordsCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", recordType)),
	)
}
