package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/models"
	"github.com/opencrvs/webhooks/internal/observability"
)

// handshakeState tracks progress through the subscription handshake.
// Every validating state can fall to denied; the order of checks is part of
// the contract (topic before subscriber before secret before mode).
type handshakeState string

const (
	stateReceived             handshakeState = "RECEIVED"
	stateValidatingTopic      handshakeState = "VALIDATING_TOPIC"
	stateValidatingSubscriber handshakeState = "VALIDATING_SUBSCRIBER"
	stateValidatingSecret     handshakeState = "VALIDATING_SECRET"
	stateValidatingMode       handshakeState = "VALIDATING_MODE"
	stateChallenging          handshakeState = "CHALLENGING"
	statePersisted            handshakeState = "PERSISTED"
	stateDenied               handshakeState = "DENIED"
)

// modeSubscribe is the only supported hub mode; there is no unsubscribe flow.
const modeSubscribe = "subscribe"

// challengeFailedReason is the denial reason for any failed callback
// verification, regardless of cause.
const challengeFailedReason = "Challenge was not equal. Subscription endpoint check failed"

// challengeBytes is the entropy of a challenge token before encoding.
const challengeBytes = 16

// Denial is the terminal handshake outcome for any failed validation.
// Reason is returned to the caller; ChallengeFailed marks denials from the
// callback verification step, which the protocol reports as bare text
// instead of a hub envelope.
type Denial struct {
	Topic           string
	Reason          string
	ChallengeFailed bool
}

// SubscribeRequest carries one handshake attempt. SystemID is the bearer
// token's subject claim; Authorization is forwarded to user management.
type SubscribeRequest struct {
	Callback      string
	Mode          string
	Topic         string
	Secret        string
	SystemID      string
	Authorization string
}

// SubscriptionService runs the challenge/response handshake and persists
// registrations. The challenge check proves the subscriber controls the
// callback URL before it can be registered as a delivery target.
type SubscriptionService struct {
	repo       RegistrationsRepository
	systems    SystemClient
	httpClient *http.Client
	metrics    observability.WebhookMetrics
}

// NewSubscriptionService creates a subscription service. challengeTimeout
// bounds the callback verification round trip. metrics may be nil.
func NewSubscriptionService(
	repo RegistrationsRepository, systems SystemClient,
	challengeTimeout time.Duration, metrics observability.WebhookMetrics,
) *SubscriptionService {
	if challengeTimeout <= 0 {
		challengeTimeout = 10 * time.Second
	}

	return &SubscriptionService{
		repo:    repo,
		systems: systems,
		httpClient: &http.Client{
			Timeout: challengeTimeout,
		},
		metrics: metrics,
	}
}

// Subscribe runs the handshake. On success it returns the challenge token
// for the handler to echo as the response body. On a failed validation it
// returns a Denial. An error return means the handshake could not be
// evaluated (infrastructure failure), not that it was denied.
func (s *SubscriptionService) Subscribe(ctx context.Context, req *SubscribeRequest) (string, *Denial, error) {
	state := stateReceived
	slog.Debug("handshake received", "topic", req.Topic, "state", string(state))

	state = stateValidatingTopic

	event, action, err := datatypes.ParseTopic(req.Topic)
	if err != nil {
		return "", s.deny(state, req.Topic, fmt.Sprintf("Unsupported topic: %s", req.Topic)), nil
	}

	state = stateValidatingSubscriber

	system, err := s.systems.GetSystemBySystemID(ctx, req.SystemID, req.Authorization)
	if err != nil {
		slog.Error("handshake: system lookup failed",
			"system_id", req.SystemID,
			"state", string(state),
			"error", err,
		)

		return "", nil, fmt.Errorf("fetch system: %w", err)
	}

	if system == nil || !system.Active() {
		return "", s.deny(state, req.Topic,
			"Active system details cannot be found. This system is no longer authorized"), nil
	}

	state = stateValidatingSecret

	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(system.Secret)) != 1 {
		return "", s.deny(state, req.Topic, "hub.secret is incorrect"), nil
	}

	state = stateValidatingMode

	if req.Mode != modeSubscribe {
		return "", s.deny(state, req.Topic, "hub.mode must be set to subscribe"), nil
	}

	state = stateChallenging

	challenge, err := generateChallenge()
	if err != nil {
		return "", nil, fmt.Errorf("generate challenge: %w", err)
	}

	if denial := s.checkChallenge(ctx, req, challenge); denial != nil {
		return "", s.denied(state, denial), nil
	}

	state = statePersisted

	registration := &models.CreateRegistrationRequest{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedBy: system.ClientID,
		Event:     event,
		Action:    action,
		Address:   req.Callback,
	}

	if _, err := s.repo.Create(ctx, registration); err != nil {
		return "", nil, fmt.Errorf("persist registration: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordHandshake("subscribed")
	}

	slog.Info("webhook subscription persisted",
		"registration_id", registration.ID,
		"client_id", system.ClientID,
		"topic", req.Topic,
		"state", string(state),
	)

	return challenge, nil, nil
}

// checkChallenge issues the verification GET to the callback and requires a
// 200 whose body equals the challenge byte for byte.
func (s *SubscriptionService) checkChallenge(ctx context.Context, req *SubscribeRequest, challenge string) *Denial {
	query := url.Values{}
	query.Set("mode", modeSubscribe)
	query.Set("challenge", challenge)
	query.Set("topic", req.Topic)

	checkURL := req.Callback
	if u, err := url.Parse(req.Callback); err == nil {
		u.RawQuery = query.Encode()
		checkURL = u.String()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		slog.Error("handshake: building challenge request failed", "callback", req.Callback, "error", err)

		return &Denial{Topic: req.Topic, Reason: challengeFailedReason, ChallengeFailed: true}
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("handshake: challenge request failed", "callback", req.Callback, "error", err)

		return &Denial{Topic: req.Topic, Reason: challengeFailedReason, ChallengeFailed: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		slog.Error("handshake: reading challenge response failed", "callback", req.Callback, "error", err)

		return &Denial{Topic: req.Topic, Reason: challengeFailedReason, ChallengeFailed: true}
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("handshake: challenge endpoint returned non-200",
			"callback", req.Callback,
			"status", resp.StatusCode,
			"body", string(body),
		)

		return &Denial{Topic: req.Topic, Reason: challengeFailedReason, ChallengeFailed: true}
	}

	// Byte-for-byte equality; a JSON-wrapped or padded challenge is rejected.
	if string(body) != challenge {
		slog.Error("handshake: challenge mismatch",
			"callback", req.Callback,
			"expected_len", len(challenge),
			"received_len", len(body),
		)

		return &Denial{Topic: req.Topic, Reason: challengeFailedReason, ChallengeFailed: true}
	}

	return nil
}

func (s *SubscriptionService) deny(state handshakeState, topic, reason string) *Denial {
	return s.denied(state, &Denial{Topic: topic, Reason: reason})
}

func (s *SubscriptionService) denied(state handshakeState, denial *Denial) *Denial {
	if s.metrics != nil {
		s.metrics.RecordHandshake("denied")
	}

	slog.Warn("webhook subscription denied",
		"topic", denial.Topic,
		"reason", denial.Reason,
		"state", string(state),
		"terminal", string(stateDenied),
	)

	return denial
}

// generateChallenge returns a fresh random challenge token.
func generateChallenge() (string, error) {
	buf := make([]byte, challengeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
