// Package settings resolves tenant qualification configuration through a
// process-wide read-through cache. Configuration changes rarely relative to
// chat volume, so staleness up to the TTL window is acceptable; each service
// instance owns its own cache and no cross-instance coherence is attempted.
package settings

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"chatwidget_backend/internal/qualify/domain"
	"chatwidget_backend/internal/qualify/repository"
)

const defaultTTL = time.Minute

type cacheEntry struct {
	settings  domain.Settings
	expiresAt time.Time
}

type keyEntry struct {
	organizationID uuid.UUID
	expiresAt      time.Time
}

// Resolver is a read-through TTL cache over the settings store.
type Resolver struct {
	store repository.SettingsStore
	ttl   time.Duration

	mu        sync.RWMutex
	byTenant  map[uuid.UUID]cacheEntry
	byAPIKey  map[string]keyEntry
	group     singleflight.Group
	clockFunc func() time.Time
}

// NewResolver creates a resolver with the given TTL (defaulting to one minute).
func NewResolver(store repository.SettingsStore, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Resolver{
		store:     store,
		ttl:       ttl,
		byTenant:  make(map[uuid.UUID]cacheEntry),
		byAPIKey:  make(map[string]keyEntry),
		clockFunc: time.Now,
	}
}

// Resolve returns the tenant's qualification settings, hitting the store only
// on a miss or after the TTL elapses.
func (r *Resolver) Resolve(ctx context.Context, organizationID uuid.UUID) (domain.Settings, error) {
	now := r.clockFunc()

	r.mu.RLock()
	entry, ok := r.byTenant[organizationID]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.settings, nil
	}

	// Concurrent misses for the same tenant share one store fetch.
	result, err, _ := r.group.Do("settings:"+organizationID.String(), func() (interface{}, error) {
		settings, err := r.store.GetSettings(ctx, organizationID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.byTenant[organizationID] = cacheEntry{settings: settings, expiresAt: now.Add(r.ttl)}
		r.mu.Unlock()
		return settings, nil
	})
	if err != nil {
		return domain.Settings{}, err
	}

	return result.(domain.Settings), nil
}

// TenantForWidgetKey resolves a widget key to its tenant, cached with the
// same TTL. Satisfies httpkit.TenantResolver.
func (r *Resolver) TenantForWidgetKey(ctx context.Context, key string) (uuid.UUID, error) {
	now := r.clockFunc()

	r.mu.RLock()
	entry, ok := r.byAPIKey[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.organizationID, nil
	}

	organizationID, err := r.store.TenantForWidgetKey(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}

	r.mu.Lock()
	r.byAPIKey[key] = keyEntry{organizationID: organizationID, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()

	return organizationID, nil
}

// Invalidate drops a tenant's cached settings, used after dashboard edits.
func (r *Resolver) Invalidate(organizationID uuid.UUID) {
	r.mu.Lock()
	delete(r.byTenant, organizationID)
	r.mu.Unlock()
}
