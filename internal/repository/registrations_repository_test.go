//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/opencrvs/webhooks/internal/apperrors"
	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/models"
	"github.com/opencrvs/webhooks/migrations"
	"github.com/opencrvs/webhooks/pkg/database"
)

// setupTestDB starts a throwaway Postgres with the service schema applied.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("webhooks_test"),
		postgres.WithUsername("webhooks"),
		postgres.WithPassword("webhooks_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.Migrate(ctx, db, migrations.FS))

	return db
}

func createRegistration(t *testing.T, repo *RegistrationsRepository, clientID string, event datatypes.Event, action datatypes.Action) *models.Registration {
	t.Helper()

	created, err := repo.Create(context.Background(), &models.CreateRegistrationRequest{
		ID:        uuid.Must(uuid.NewV7()),
		CreatedBy: clientID,
		Event:     event,
		Action:    action,
		Address:   "https://example.com/hooks/" + clientID,
	})
	require.NoError(t, err)

	return created
}

func TestRegistrationsRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRegistrationsRepository(db)
	ctx := context.Background()

	t.Run("create round-trips all fields", func(t *testing.T) {
		id := uuid.Must(uuid.NewV7())

		created, err := repo.Create(ctx, &models.CreateRegistrationRequest{
			ID:        id,
			CreatedBy: "client-roundtrip",
			Event:     datatypes.EventBirth,
			Action:    datatypes.ActionRegistered,
			Address:   "https://example.com/hooks",
		})
		require.NoError(t, err)

		assert.Equal(t, id, created.ID)
		assert.Equal(t, "client-roundtrip", created.CreatedBy)
		assert.Equal(t, datatypes.EventBirth, created.Event)
		assert.Equal(t, datatypes.ActionRegistered, created.Action)
		assert.Equal(t, "https://example.com/hooks", created.Address)
		assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Minute)
	})

	t.Run("duplicate bindings for the same owner are allowed", func(t *testing.T) {
		first := createRegistration(t, repo, "client-dup", datatypes.EventBirth, datatypes.ActionRegistered)
		second := createRegistration(t, repo, "client-dup", datatypes.EventBirth, datatypes.ActionRegistered)

		assert.NotEqual(t, first.ID, second.ID)

		listed, err := repo.ListByOwner(ctx, "client-dup")
		require.NoError(t, err)
		assert.Len(t, listed, 2)
	})

	t.Run("list by owner is scoped and ordered by creation", func(t *testing.T) {
		older := createRegistration(t, repo, "client-owner", datatypes.EventBirth, datatypes.ActionRegistered)
		// created_at carries microsecond precision; keep the rows apart.
		time.Sleep(2 * time.Millisecond)
		newer := createRegistration(t, repo, "client-owner", datatypes.EventDeath, datatypes.ActionCertified)
		createRegistration(t, repo, "client-other", datatypes.EventBirth, datatypes.ActionRegistered)

		listed, err := repo.ListByOwner(ctx, "client-owner")
		require.NoError(t, err)
		require.Len(t, listed, 2)

		assert.Equal(t, older.ID, listed[0].ID)
		assert.Equal(t, newer.ID, listed[1].ID)
		assert.Equal(t, datatypes.EventDeath, listed[1].Event)
		assert.Equal(t, datatypes.ActionCertified, listed[1].Action)
	})

	t.Run("list by owner returns empty for an unknown owner", func(t *testing.T) {
		listed, err := repo.ListByOwner(ctx, "client-nobody")
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("list for dispatch matches the exact event and action pair", func(t *testing.T) {
		match := createRegistration(t, repo, "client-dispatch", datatypes.EventMarriage, datatypes.ActionIssued)
		createRegistration(t, repo, "client-dispatch", datatypes.EventMarriage, datatypes.ActionCorrected)
		createRegistration(t, repo, "client-dispatch", datatypes.EventDeath, datatypes.ActionIssued)

		listed, err := repo.ListForDispatch(ctx, datatypes.EventMarriage, datatypes.ActionIssued)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, match.ID, listed[0].ID)
	})

	t.Run("delete removes the registration", func(t *testing.T) {
		created := createRegistration(t, repo, "client-delete", datatypes.EventBirth, datatypes.ActionRegistered)

		require.NoError(t, repo.Delete(ctx, created.ID))

		listed, err := repo.ListByOwner(ctx, "client-delete")
		require.NoError(t, err)
		assert.Empty(t, listed)

		err = repo.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("delete of an unknown id reports not found", func(t *testing.T) {
		err := repo.Delete(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("delete by owner removes all and reports the count", func(t *testing.T) {
		createRegistration(t, repo, "client-bulk", datatypes.EventBirth, datatypes.ActionRegistered)
		createRegistration(t, repo, "client-bulk", datatypes.EventBirth, datatypes.ActionCertified)
		survivor := createRegistration(t, repo, "client-survivor", datatypes.EventBirth, datatypes.ActionRegistered)

		count, err := repo.DeleteByOwner(ctx, "client-bulk")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = repo.DeleteByOwner(ctx, "client-bulk")
		require.NoError(t, err)
		assert.Zero(t, count, "bulk delete is idempotent")

		listed, err := repo.ListByOwner(ctx, "client-survivor")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, survivor.ID, listed[0].ID)
	})
}
