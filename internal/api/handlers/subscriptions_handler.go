// Package handlers contains HTTP handlers for the webhooks API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opencrvs/webhooks/internal/api/middleware"
	"github.com/opencrvs/webhooks/internal/api/response"
	"github.com/opencrvs/webhooks/internal/api/validation"
	"github.com/opencrvs/webhooks/internal/models"
	"github.com/opencrvs/webhooks/internal/service"
)

// Subscriber runs the subscription handshake.
type Subscriber interface {
	Subscribe(ctx context.Context, req *service.SubscribeRequest) (string, *service.Denial, error)
}

// SubscriptionsHandler handles subscription handshake requests.
type SubscriptionsHandler struct {
	service Subscriber
}

// NewSubscriptionsHandler creates a new subscriptions handler.
func NewSubscriptionsHandler(service Subscriber) *SubscriptionsHandler {
	return &SubscriptionsHandler{service: service}
}

// Subscribe handles POST /subscribe. On success the challenge token is echoed
// as the response body; validation failures return a denied hub envelope and
// challenge failures a bare text body, both with status 400.
func (h *SubscriptionsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeWebhookRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid request body")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	systemID, ok := middleware.SystemIDFromContext(r.Context())
	if !ok {
		response.RespondUnauthorized(w, "Missing system identity")
		return
	}

	challenge, denial, err := h.service.Subscribe(r.Context(), &service.SubscribeRequest{
		Callback:      req.Hub.Callback,
		Mode:          req.Hub.Mode,
		Topic:         req.Hub.Topic,
		Secret:        req.Hub.Secret,
		SystemID:      systemID,
		Authorization: r.Header.Get("Authorization"),
	})
	if err != nil {
		slog.Error("Failed to run subscription handshake", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	if denial != nil {
		if denial.ChallengeFailed {
			response.RespondText(w, http.StatusBadRequest, denial.Reason)
			return
		}

		response.RespondJSON(w, http.StatusBadRequest, models.DeniedResponse{
			Hub: models.DeniedHub{
				Mode:   "denied",
				Topic:  denial.Topic,
				Reason: denial.Reason,
			},
		})
		return
	}

	response.RespondText(w, http.StatusOK, challenge)
}
