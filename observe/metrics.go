// Package observe wires structured logging, OpenTelemetry metrics and tracing
// for the relay server.
//
// Metrics are recorded through the OpenTelemetry API and exposed for scraping
// through the Prometheus exporter set up by InitProvider. Tests should build
// their own Metrics with NewMetrics and a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "memos"

// Metrics holds the instruments recorded by the relay.
type Metrics struct {
	// TranscribeDuration tracks the external speech-to-text call.
	TranscribeDuration metric.Float64Histogram

	// SummarizeDuration tracks the external summarization call.
	SummarizeDuration metric.Float64Histogram

	// UploadSize tracks accepted audio uploads in bytes.
	UploadSize metric.Int64Histogram

	// ProviderRequests counts external calls by stage and status.
	ProviderRequests metric.Int64Counter

	// RejectedUploads counts uploads refused before any external call, by reason.
	RejectedUploads metric.Int64Counter

	// HTTPRequestDuration is recorded by Middleware.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds. Transcribing a long memo takes tens of seconds.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120,
}

var sizeBuckets = []float64{
	16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20, 8 << 20, 16 << 20, 25 << 20,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscribeDuration, err = m.Float64Histogram("memos.transcribe.duration",
		metric.WithDescription("Latency of the external speech-to-text call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummarizeDuration, err = m.Float64Histogram("memos.summarize.duration",
		metric.WithDescription("Latency of the external summarization call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UploadSize, err = m.Int64Histogram("memos.upload.size",
		metric.WithDescription("Size of accepted audio uploads."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("memos.provider.requests",
		metric.WithDescription("External provider calls by stage and status."),
	); err != nil {
		return nil, err
	}
	if met.RejectedUploads, err = m.Int64Counter("memos.upload.rejected",
		metric.WithDescription("Uploads rejected before any external call, by reason."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("memos.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a process-wide Metrics built from the global meter
// provider. Call it after InitProvider.
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

// RecordProviderRequest counts one external call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, stage, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("status", status),
		),
	)
}

// RecordRejectedUpload counts an upload refused with reason.
func (m *Metrics) RecordRejectedUpload(ctx context.Context, reason string) {
	m.RejectedUploads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// Attr is attribute.String, shortened for call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
