// Package repository provides Postgres data access for webhook registrations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/models"
)

// RegistrationsRepository handles data access for webhook registrations.
type RegistrationsRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationsRepository creates a new registrations repository.
func NewRegistrationsRepository(db *pgxpool.Pool) *RegistrationsRepository {
	return &RegistrationsRepository{db: db}
}

// Create inserts a new registration. Registrations are immutable after
// creation; duplicates for the same (owner, event, action) pair are allowed.
func (r *RegistrationsRepository) Create(ctx context.Context, req *models.CreateRegistrationRequest) (*models.Registration, error) {
	query := `
		INSERT INTO webhook_registrations (id, created_by, event, action, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_by, event, action, address, created_at
	`

	row := r.db.QueryRow(ctx, query,
		req.ID, req.CreatedBy, req.Event.String(), req.Action.String(), req.Address,
	)

	registration, err := scanRegistration(row)
	if err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	return registration, nil
}

// ListByOwner retrieves all registrations created by the given subscriber,
// sorted by creation ascending.
func (r *RegistrationsRepository) ListByOwner(ctx context.Context, clientID string) ([]models.Registration, error) {
	query := `
		SELECT id, created_by, event, action, address, created_at
		FROM webhook_registrations
		WHERE created_by = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list registrations by owner: %w", err)
	}
	defer rows.Close()

	return collectRegistrations(rows)
}

// ListForDispatch retrieves all registrations bound to the given
// (event, action) pair, sorted by creation ascending.
func (r *RegistrationsRepository) ListForDispatch(ctx context.Context, event datatypes.Event, action datatypes.Action) ([]models.Registration, error) {
	query := `
		SELECT id, created_by, event, action, address, created_at
		FROM webhook_registrations
		WHERE event = $1 AND action = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, event.String(), action.String())
	if err != nil {
		return nil, fmt.Errorf("list registrations for dispatch: %w", err)
	}
	defer rows.Close()

	return collectRegistrations(rows)
}

// Delete removes a single registration by id.
func (r *RegistrationsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("registration", "registration not found")
	}

	return nil
}

// DeleteByOwner removes all registrations created by the given subscriber.
// Returns the number of deleted registrations.
func (r *RegistrationsRepository) DeleteByOwner(ctx context.Context, clientID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_registrations WHERE created_by = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete registrations by owner: %w", err)
	}

	return tag.RowsAffected(), nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		registration models.Registration
		event        string
		action       string
	)

	err := row.Scan(
		&registration.ID, &registration.CreatedBy, &event, &action,
		&registration.Address, &registration.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("registration", "registration not found")
		}

		return nil, err
	}

	parsedEvent, ok := datatypes.ParseEvent(event)
	if !ok {
		return nil, fmt.Errorf("%w: stored event %q", datatypes.ErrInvalidEvent, event)
	}

	parsedAction, ok := datatypes.ParseAction(action)
	if !ok {
		return nil, fmt.Errorf("%w: stored action %q", datatypes.ErrInvalidAction, action)
	}

	registration.Event = parsedEvent
	registration.Action = parsedAction

	return &registration, nil
}

func collectRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	var registrations []models.Registration

	for rows.Next() {
		registration, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}

		registrations = append(registrations, *registration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}

	return registrations, nil
}
