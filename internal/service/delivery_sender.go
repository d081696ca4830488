package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DeliverySender POSTs a single signed payload to a subscriber callback.
type DeliverySender interface {
	Send(ctx context.Context, args *DeliveryArgs) error
}

// DeliverySenderImpl implements DeliverySender over plain HTTP. Retries are
// owned by the job queue, not the sender.
type DeliverySenderImpl struct {
	repo       RegistrationsRepository
	httpClient *http.Client
}

// NewDeliverySenderImpl creates a sender that uses the given repo for
// 410 Gone cleanup. HTTP client uses 15s timeout and does not follow redirects.
func NewDeliverySenderImpl(repo RegistrationsRepository) *DeliverySenderImpl {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &DeliverySenderImpl{
		repo:       repo,
		httpClient: client,
	}
}

// Send POSTs the pre-signed payload to the registration address. On 410 Gone
// the registration is removed and an error returned so the attempt is recorded.
func (s *DeliverySenderImpl) Send(ctx context.Context, args *DeliveryArgs) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, args.URL, bytes.NewReader(args.Payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, SignatureHeaderValue(args.Signature))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close webhook response body", "registration_id", args.RegistrationID, "error", closeErr)
		}
	}()

	if resp.StatusCode == http.StatusGone {
		if deleteErr := s.repo.Delete(ctx, args.RegistrationID); deleteErr != nil {
			slog.Error("failed to remove registration after 410 Gone",
				"registration_id", args.RegistrationID,
				"url", args.URL,
				"error", deleteErr,
			)
		} else {
			slog.Info("registration removed after 410 Gone (endpoint no longer accepts delivery)",
				"registration_id", args.RegistrationID,
				"url", args.URL,
			)
		}
		return fmt.Errorf("webhook returned 410 Gone (registration removed): %s", args.URL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}

	return nil
}
