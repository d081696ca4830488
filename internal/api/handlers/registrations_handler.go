package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opencrvs/webhooks/internal/api/middleware"
	"github.com/opencrvs/webhooks/internal/api/response"
	"github.com/opencrvs/webhooks/internal/api/validation"
	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/models"
)

// RegistrationsService defines the interface for registration listing and
// removal.
type RegistrationsService interface {
	ListForSystem(ctx context.Context, systemID, authorization string) (*models.ListRegistrationsResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByClientID(ctx context.Context, clientID string)
}

// RegistrationsHandler handles HTTP requests for existing registrations.
type RegistrationsHandler struct {
	service RegistrationsService
}

// NewRegistrationsHandler creates a new registrations handler.
func NewRegistrationsHandler(service RegistrationsService) *RegistrationsHandler {
	return &RegistrationsHandler{service: service}
}

// List handles GET /webhooks.
func (h *RegistrationsHandler) List(w http.ResponseWriter, r *http.Request) {
	systemID, ok := middleware.SystemIDFromContext(r.Context())
	if !ok {
		response.RespondUnauthorized(w, "Missing system identity")
		return
	}

	result, err := h.service.ListForSystem(r.Context(), systemID, r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, apperrors.ErrAuth) {
			response.RespondText(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Failed to list registrations", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /webhooks/{webhookId}.
func (h *RegistrationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "webhookId")
	if idStr == "" {
		response.RespondText(w, http.StatusBadRequest, "No webhook id in URL params")
		return
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		response.RespondText(w, http.StatusBadRequest, fmt.Sprintf("Could not delete webhook: %s", idStr))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			slog.Error("Failed to delete registration", "method", r.Method, "path", r.URL.Path, "id", id, "error", err)
		}
		response.RespondText(w, http.StatusBadRequest, fmt.Sprintf("Could not delete webhook: %s", idStr))
		return
	}

	response.RespondNoContent(w)
}

// DeleteByClientID handles POST /webhooks/delete-by-client. Called by
// user management when a subscriber integration is deactivated or removed.
// Always responds 204; removal failures are logged and retried out of band.
func (h *RegistrationsHandler) DeleteByClientID(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteByClientIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Invalid request body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondText(w, http.StatusBadRequest, "No clientId in payload")
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		response.RespondText(w, http.StatusBadRequest, "No clientId in payload")
		return
	}

	h.service.DeleteByClientID(r.Context(), req.ClientID)

	response.RespondNoContent(w)
}
