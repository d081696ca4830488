package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/fhir"
	"github.com/opencrvs/webhooks/internal/models"
	"github.com/opencrvs/webhooks/internal/observability"
)

// Per-registration dispatch failures, used to bucket the error metric.
var (
	errFetchSystem     = errors.New("fetch system")
	errFilterRecord    = errors.New("filter record")
	errEnqueueDelivery = errors.New("enqueue delivery")
)

// DeliveryInserter enqueues one delivery job (e.g. River client).
type DeliveryInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// DispatchService fans a record state transition out to all matching
// registrations: fetch the owning subscriber fresh, filter the record per
// its permissions, sign, and enqueue one delivery job per registration.
type DispatchService struct {
	repo        RegistrationsRepository
	systems     SystemClient
	inserter    DeliveryInserter
	filter      RecordFilter
	maxAttempts int
	metrics     observability.WebhookMetrics
}

// RecordFilter redacts a record down to the sections a system may see.
type RecordFilter func(system *models.System, record *fhir.Bundle) (*fhir.Bundle, error)

// NewDispatchService creates a dispatcher. maxAttempts is the delivery
// retry budget handed to the queue. metrics may be nil.
func NewDispatchService(
	repo RegistrationsRepository, systems SystemClient, inserter DeliveryInserter,
	filter RecordFilter, maxAttempts int, metrics observability.WebhookMetrics,
) *DispatchService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &DispatchService{
		repo:        repo,
		systems:     systems,
		inserter:    inserter,
		filter:      filter,
		maxAttempts: maxAttempts,
		metrics:     metrics,
	}
}

// Dispatch enqueues delivery jobs for every registration bound to the
// record's (event, action) pair. A failure for one registration is logged
// and skipped; it never aborts the loop or the trigger request. Actual HTTP
// delivery happens asynchronously in the queue.
func (s *DispatchService) Dispatch(ctx context.Context, record *fhir.Bundle, action datatypes.Action, authorization string) error {
	event, err := record.EventType()
	if err != nil {
		return fmt.Errorf("determine record event: %w", err)
	}

	registrations, err := s.repo.ListForDispatch(ctx, event, action)
	if err != nil {
		return fmt.Errorf("list registrations: %w", err)
	}

	enqueued := int64(0)

	for i := range registrations {
		registration := &registrations[i]

		queued, err := s.dispatchOne(ctx, registration, record, action, authorization)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordDispatchError(dispatchErrorReason(err))
			}

			slog.Error("skipping webhook registration",
				"registration_id", registration.ID,
				"client_id", registration.CreatedBy,
				"action", action.String(),
				"error", err,
			)

			continue
		}

		if queued {
			enqueued++
		}
	}

	if s.metrics != nil && enqueued > 0 {
		s.metrics.RecordJobsEnqueued(event.String(), action.String(), enqueued)
	}

	slog.Info("webhook dispatch complete",
		"event", event.String(),
		"action", action.String(),
		"matched", len(registrations),
		"enqueued", enqueued,
	)

	return nil
}

// dispatchOne prepares and enqueues the delivery job for one registration.
// Returns false without error when the registration was skipped because its
// subscriber is inactive.
func (s *DispatchService) dispatchOne(
	ctx context.Context, registration *models.Registration,
	record *fhir.Bundle, action datatypes.Action, authorization string,
) (bool, error) {
	// Fresh fetch: status and permissions may have changed since the
	// registration was created.
	system, err := s.systems.GetSystemByClientID(ctx, registration.CreatedBy, authorization)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errFetchSystem, err)
	}

	if !system.Active() {
		slog.Debug("registration dormant, subscriber inactive",
			"registration_id", registration.ID,
			"client_id", registration.CreatedBy,
		)

		return false, nil
	}

	filtered, err := s.filter(system, record)
	if err != nil {
		return false, fmt.Errorf("%w: %w", errFilterRecord, err)
	}

	payload := &DeliveryPayload{
		Timestamp: time.Now().UTC(),
		ID:        registration.ID,
		Event: DeliveryEvent{
			Hub:     DeliveryHub{Topic: action.String()},
			Context: []*fhir.Bundle{filtered},
		},
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	args := DeliveryArgs{
		RegistrationID: registration.ID,
		Action:         action.String(),
		URL:            registration.Address,
		Payload:        payloadJSON,
		Signature:      SignPayload(system.Secret, payloadJSON),
		DispatchToken:  uuid.New(),
	}

	opts := &river.InsertOpts{
		MaxAttempts: s.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}

	if _, err := s.inserter.Insert(ctx, args, opts); err != nil {
		return false, fmt.Errorf("%w: %w", errEnqueueDelivery, err)
	}

	slog.Info("queued webhook delivery",
		"registration_id", registration.ID,
		"action", action.String(),
	)

	return true, nil
}

// dispatchErrorReason buckets per-registration failures for metrics.
func dispatchErrorReason(err error) string {
	switch {
	case errors.Is(err, errFetchSystem):
		return "fetch_system_failed"
	case errors.Is(err, errFilterRecord):
		return "filter_failed"
	case errors.Is(err, errEnqueueDelivery):
		return "enqueue_failed"
	default:
		return "other"
	}
}
