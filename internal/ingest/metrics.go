package ingest

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope every instrument below is
// registered under; telemetry.InitMeterProvider sets the global
// MeterProvider these pull from in cmd/ingestd/main.go, and fall back to
// the SDK's no-op implementation when no OTel endpoint is configured.
const meterName = "sentinel-ingestd/ingest"

// metrics bundles the counters and histogram the ingest handler emits
// per payload processed (spec.md §4.7): how many payloads and events
// flowed through, the severity distribution the Trust Engine observed,
// and the resulting trust score.
type metrics struct {
	payloadsProcessed metric.Int64Counter
	eventsIngested    metric.Int64Counter
	detections        metric.Int64Counter
	trustScore        metric.Float64Histogram
}

// newMetrics constructs the ingest handler's instruments against the
// current global MeterProvider.
func newMetrics() metrics {
	meter := otel.Meter(meterName)

	payloadsProcessed, _ := meter.Int64Counter(
		"sentinel.ingest.payloads_processed",
		metric.WithDescription("Number of device payloads accepted by POST /api/logs"),
	)
	eventsIngested, _ := meter.Int64Counter(
		"sentinel.ingest.events_ingested",
		metric.WithDescription("Number of clean events persisted to the event store"),
	)
	detections, _ := meter.Int64Counter(
		"sentinel.ingest.detections",
		metric.WithDescription("Number of payloads with a non-none observed severity, by severity"),
	)
	trustScore, _ := meter.Float64Histogram(
		"sentinel.ingest.trust_score",
		metric.WithDescription("Device trust score after each payload's score update"),
	)

	return metrics{
		payloadsProcessed: payloadsProcessed,
		eventsIngested:    eventsIngested,
		detections:        detections,
		trustScore:        trustScore,
	}
}

func (m metrics) recordPayload(ctx context.Context, deviceID, payloadType string, eventCount int) {
	attrs := metric.WithAttributes(attribute.String("payload_type", payloadType))
	m.payloadsProcessed.Add(ctx, 1, attrs)
	m.eventsIngested.Add(ctx, int64(eventCount), attrs)
}

func (m metrics) recordTrustUpdate(ctx context.Context, severity string, score float64) {
	if severity != "none" {
		m.detections.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
	}
	m.trustScore.Record(ctx, score)
}
