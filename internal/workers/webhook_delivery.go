// Package workers provides River job workers (e.g. webhook delivery).
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/opencrvs/webhooks/internal/observability"
	"github.com/opencrvs/webhooks/internal/service"
)

// WebhookDeliveryWorker delivers one signed payload to one subscriber callback.
type WebhookDeliveryWorker struct {
	river.WorkerDefaults[service.DeliveryArgs]

	sender  service.DeliverySender
	metrics observability.WebhookMetrics
}

// NewWebhookDeliveryWorker creates a worker that uses the given sender.
// metrics may be nil when metrics are disabled.
func NewWebhookDeliveryWorker(sender service.DeliverySender, metrics observability.WebhookMetrics) *WebhookDeliveryWorker {
	return &WebhookDeliveryWorker{sender: sender, metrics: metrics}
}

// WebhookDeliveryTimeout is the max duration for a single delivery attempt
// (align with the sender's HTTP client timeout).
const WebhookDeliveryTimeout = 25 * time.Second

// Timeout limits how long a single delivery can run.
func (w *WebhookDeliveryWorker) Timeout(*river.Job[service.DeliveryArgs]) time.Duration {
	return WebhookDeliveryTimeout
}

// Work sends the payload once. Retries are handled by the queue up to the
// job's attempt budget.
func (w *WebhookDeliveryWorker) Work(ctx context.Context, job *river.Job[service.DeliveryArgs]) error {
	args := job.Args
	start := time.Now()

	err := w.sender.Send(ctx, &args)
	if err == nil {
		if w.metrics != nil {
			w.metrics.RecordDelivery("success")
			w.metrics.RecordDeliveryDuration(time.Since(start), "success")
		}

		return nil
	}

	isLastAttempt := job.Attempt >= job.MaxAttempts
	if isLastAttempt {
		if w.metrics != nil {
			w.metrics.RecordDelivery("failed_final")
			w.metrics.RecordDeliveryDuration(time.Since(start), "failed_final")
		}

		slog.Error("webhook delivery abandoned after max attempts",
			"registration_id", args.RegistrationID,
			"action", args.Action,
			"url", args.URL,
			"error", err,
		)

		return fmt.Errorf("webhook send (final attempt): %w", err)
	}

	if w.metrics != nil {
		w.metrics.RecordDelivery("retry")
		w.metrics.RecordDeliveryDuration(time.Since(start), "retry")
	}

	slog.Warn("webhook delivery failed, will retry",
		"registration_id", args.RegistrationID,
		"action", args.Action,
		"url", args.URL,
		"attempt", job.Attempt,
		"error", err,
	)

	return fmt.Errorf("webhook send: %w", err)
}
