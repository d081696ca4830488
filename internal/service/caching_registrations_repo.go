package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/opencrvs/webhooks/internal/datatypes"
	"github.com/opencrvs/webhooks/internal/models"
)

// dispatchKey is the cache key for one (event, action) binding.
type dispatchKey struct {
	event  datatypes.Event
	action datatypes.Action
}

// CachingRegistrationsRepo wraps a RegistrationsRepository with a TTL cache
// for ListForDispatch. The cache is invalidated on Create, Delete, and
// DeleteByOwner so a new subscription is dispatchable immediately. Lookups
// on a cache miss go through singleflight so concurrent triggers for the
// same binding share one query.
type CachingRegistrationsRepo struct {
	inner   RegistrationsRepository
	cache   *expirable.LRU[dispatchKey, []models.Registration]
	cacheMu sync.Mutex
	sfGroup singleflight.Group
}

// NewCachingRegistrationsRepo returns a RegistrationsRepository caching
// ListForDispatch results for ttl. size bounds cache entries (the binding
// space is the event x action product, so a small size suffices).
func NewCachingRegistrationsRepo(inner RegistrationsRepository, size int, ttl time.Duration) *CachingRegistrationsRepo {
	return &CachingRegistrationsRepo{
		inner: inner,
		cache: expirable.NewLRU[dispatchKey, []models.Registration](size, nil, ttl),
	}
}

// Create inserts via the inner repo and invalidates the dispatch cache.
func (r *CachingRegistrationsRepo) Create(ctx context.Context, req *models.CreateRegistrationRequest) (*models.Registration, error) {
	registration, err := r.inner.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	r.invalidate()

	return registration, nil
}

// ListByOwner delegates to the inner repo (owner listings are not cached).
func (r *CachingRegistrationsRepo) ListByOwner(ctx context.Context, clientID string) ([]models.Registration, error) {
	return r.inner.ListByOwner(ctx, clientID)
}

// ListForDispatch returns the cached registrations for the binding, loading
// through singleflight on a miss.
func (r *CachingRegistrationsRepo) ListForDispatch(ctx context.Context, event datatypes.Event, action datatypes.Action) ([]models.Registration, error) {
	key := dispatchKey{event: event, action: action}

	r.cacheMu.Lock()
	cached, ok := r.cache.Get(key)
	r.cacheMu.Unlock()

	if ok {
		return cached, nil
	}

	v, err, _ := r.sfGroup.Do(datatypes.Topic(event, action), func() (any, error) {
		registrations, err := r.inner.ListForDispatch(ctx, event, action)
		if err != nil {
			return nil, err
		}

		// Write inside singleflight so only one goroutine populates the key.
		r.cacheMu.Lock()
		r.cache.Add(key, registrations)
		r.cacheMu.Unlock()

		return registrations, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list registrations for dispatch: %w", err)
	}

	registrations, _ := v.([]models.Registration)

	return registrations, nil
}

// Delete removes via the inner repo and invalidates the dispatch cache.
func (r *CachingRegistrationsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}

	r.invalidate()

	return nil
}

// DeleteByOwner removes via the inner repo and invalidates the dispatch cache.
func (r *CachingRegistrationsRepo) DeleteByOwner(ctx context.Context, clientID string) (int64, error) {
	deleted, err := r.inner.DeleteByOwner(ctx, clientID)
	if err != nil {
		return 0, err
	}

	r.invalidate()

	return deleted, nil
}

func (r *CachingRegistrationsRepo) invalidate() {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache.Purge()
}

// Ensure CachingRegistrationsRepo implements RegistrationsRepository.
var _ RegistrationsRepository = (*CachingRegistrationsRepo)(nil)
