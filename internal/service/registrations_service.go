package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/models"
)

// RegistrationsRepository defines the interface for registration data access.
type RegistrationsRepository interface {
	Create(ctx context.Context, req *models.CreateRegistrationRequest) (*models.Registration, error)
	ListByOwner(ctx context.Context, clientID string) ([]models.Registration, error)
	ListForDispatch(ctx context.Context, event datatypes.Event, action datatypes.Action) ([]models.Registration, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOwner(ctx context.Context, clientID string) (int64, error)
}

// SystemClient resolves subscriber systems from user management.
type SystemClient interface {
	GetSystemBySystemID(ctx context.Context, systemID, authorization string) (*models.System, error)
	GetSystemByClientID(ctx context.Context, clientID, authorization string) (*models.System, error)
}

// RegistrationsService handles listing and deleting registrations.
type RegistrationsService struct {
	repo    RegistrationsRepository
	systems SystemClient
}

// NewRegistrationsService creates a new registrations service.
func NewRegistrationsService(repo RegistrationsRepository, systems SystemClient) *RegistrationsService {
	return &RegistrationsService{repo: repo, systems: systems}
}

// ListForSystem returns the registrations owned by the system id taken from
// the caller's token, as list entries with owner details and topic, sorted
// by creation ascending.
func (s *RegistrationsService) ListForSystem(ctx context.Context, systemID, authorization string) (*models.ListRegistrationsResponse, error) {
	system, err := s.systems.GetSystemBySystemID(ctx, systemID, authorization)
	if err != nil {
		return nil, err
	}

	if system == nil || !system.Active() {
		return nil, apperrors.NewAuthError(
			"Active system details cannot be found. This system is no longer authorized")
	}

	registrations, err := s.repo.ListByOwner(ctx, system.ClientID)
	if err != nil {
		return nil, err
	}

	owner := models.RegistrationOwner{
		ClientID: system.ClientID,
		Name:     system.Name,
		Type:     system.Type,
		Username: system.Username,
	}

	entries := make([]models.RegistrationEntry, 0, len(registrations))
	for i := range registrations {
		registration := &registrations[i]
		entries = append(entries, models.RegistrationEntry{
			ID:        registration.ID,
			Callback:  registration.Address,
			CreatedAt: registration.CreatedAt.UTC().Format(time.RFC3339),
			CreatedBy: owner,
			Topic:     registration.Topic(),
		})
	}

	return &models.ListRegistrationsResponse{Entries: entries}, nil
}

// Delete removes a single registration by id.
func (s *RegistrationsService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// DeleteByClientID removes all registrations owned by the given subscriber.
// Best-effort: errors are logged, never surfaced to the caller.
func (s *RegistrationsService) DeleteByClientID(ctx context.Context, clientID string) {
	deleted, err := s.repo.DeleteByOwner(ctx, clientID)
	if err != nil {
		slog.Warn("could not delete registrations for client",
			"client_id", clientID,
			"error", err,
		)

		return
	}

	slog.Info("deleted registrations for client",
		"client_id", clientID,
		"count", deleted,
	)
}
