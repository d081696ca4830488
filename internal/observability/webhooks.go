// Package observability provides OpenTelemetry metrics and log context for
// the webhooks service.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameHandshakes       = "webhooks_handshakes_total"
	MetricNameJobsEnqueued     = "webhooks_jobs_enqueued_total"
	MetricNameDispatchErrors   = "webhooks_dispatch_errors_total"
	MetricNameDeliveries       = "webhooks_deliveries_total"
	MetricNameDeliveryDuration = "webhooks_delivery_duration_seconds"
)

// Attribute keys.
const (
	AttrEvent   = "event"
	AttrAction  = "action"
	AttrOutcome = "outcome"
	AttrReason  = "reason"
	AttrStatus  = "status"
)

// WebhookMetrics records handshake and dispatch pipeline metrics.
// A nil WebhookMetrics means metrics are disabled; callers check for nil.
type WebhookMetrics interface {
	RecordHandshake(outcome string)
	RecordJobsEnqueued(event, action string, count int64)
	RecordDispatchError(reason string)
	RecordDelivery(status string)
	RecordDeliveryDuration(duration time.Duration, status string)
}

type webhookMetrics struct {
	handshakes       metric.Int64Counter
	jobsEnqueued     metric.Int64Counter
	dispatchErrors   metric.Int64Counter
	deliveries       metric.Int64Counter
	deliveryDuration metric.Float64Histogram
}

// NewWebhookMetrics creates WebhookMetrics. Returns (nil, nil) when meter is
// nil (metrics disabled).
func NewWebhookMetrics(meter metric.Meter) (WebhookMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	handshakes, err := meter.Int64Counter(
		MetricNameHandshakes,
		metric.WithDescription("Total subscription handshakes by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create handshakes counter: %w", err)
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameJobsEnqueued,
		metric.WithDescription("Total delivery jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create jobs enqueued counter: %w", err)
	}

	dispatchErrors, err := meter.Int64Counter(
		MetricNameDispatchErrors,
		metric.WithDescription("Total per-registration dispatch errors (skipped registrations)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch errors counter: %w", err)
	}

	deliveries, err := meter.Int64Counter(
		MetricNameDeliveries,
		metric.WithDescription("Total delivery outcomes by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create deliveries counter: %w", err)
	}

	deliveryDuration, err := meter.Float64Histogram(
		MetricNameDeliveryDuration,
		metric.WithDescription("Webhook delivery duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create delivery duration histogram: %w", err)
	}

	return &webhookMetrics{
		handshakes:       handshakes,
		jobsEnqueued:     jobsEnqueued,
		dispatchErrors:   dispatchErrors,
		deliveries:       deliveries,
		deliveryDuration: deliveryDuration,
	}, nil
}

func (wm *webhookMetrics) RecordHandshake(outcome string) {
	wm.handshakes.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func (wm *webhookMetrics) RecordJobsEnqueued(event, action string, count int64) {
	wm.jobsEnqueued.Add(context.Background(), count,
		metric.WithAttributes(attribute.String(AttrEvent, event), attribute.String(AttrAction, action)))
}

func (wm *webhookMetrics) RecordDispatchError(reason string) {
	wm.dispatchErrors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (wm *webhookMetrics) RecordDelivery(status string) {
	wm.deliveries.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (wm *webhookMetrics) RecordDeliveryDuration(duration time.Duration, status string) {
	wm.deliveryDuration.Record(context.Background(), duration.Seconds(),
		metric.WithAttributes(attribute.String(AttrStatus, status)))
}
