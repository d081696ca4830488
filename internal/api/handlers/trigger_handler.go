package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opencrvs/webhooks/internal/api/response"
	"github.com/opencrvs/webhooks/internal/api/validation"
	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/fhir"
	"github.com/opencrvs/webhooks/internal/models"
)

// Dispatcher fans a record transition out to matching registrations.
type Dispatcher interface {
	Dispatch(ctx context.Context, record *fhir.Bundle, action datatypes.Action, authorization string) error
}

// TriggerHandler handles dispatch trigger requests from the workflow
// service.
type TriggerHandler struct {
	dispatcher Dispatcher
}

// NewTriggerHandler creates a new trigger handler.
func NewTriggerHandler(dispatcher Dispatcher) *TriggerHandler {
	return &TriggerHandler{dispatcher: dispatcher}
}

// Trigger handles POST /trigger?action={action}. The body is the full
// record bundle; the response only acknowledges that the dispatch loop ran.
func (h *TriggerHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var query models.TriggerQuery
	if err := validation.ValidateAndDecodeQueryParams(r, &query); err != nil {
		validation.RespondValidationError(w, err)
		return
	}

	// Already validated by the record_action tag.
	action, _ := datatypes.ParseAction(query.Action)

	var record fhir.Bundle
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		slog.Warn("Invalid record body", "method", r.Method, "path", r.URL.Path, "error", err)
		response.RespondBadRequest(w, "Invalid record body")
		return
	}

	err := h.dispatcher.Dispatch(r.Context(), &record, action, r.Header.Get("Authorization"))
	if err != nil {
		if errors.Is(err, apperrors.ErrMalformedRecord) {
			response.RespondBadRequest(w, err.Error())
			return
		}
		slog.Error("Failed to dispatch webhooks", "method", r.Method, "path", r.URL.Path, "action", query.Action, "error", err)
		response.RespondInternalServerError(w, "An unexpected error occurred")
		return
	}

	response.RespondJSON(w, http.StatusOK, models.TriggerResponse{Success: true})
}
