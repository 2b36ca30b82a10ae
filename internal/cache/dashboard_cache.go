package cache

import (
	"context"
	"log"

	"snappy-license-server/internal/events"
)

// DashboardCache caches the per-user dashboard projection and the
// admin pending queue, invalidating on license lifecycle events so a
// state change is never served stale.
type DashboardCache struct {
	cache *CacheService
}

// NewDashboardCache creates a dashboard cache and wires invalidation
// into the event bus.
func NewDashboardCache(cache *CacheService, bus *events.EventBus) *DashboardCache {
	dc := &DashboardCache{cache: cache}

	if bus != nil {
		invalidate := func(e events.Event) {
			dc.handleEvent(e)
		}
		bus.Subscribe(events.EventLicenseSubmitted, invalidate)
		bus.Subscribe(events.EventLicenseVerified, invalidate)
		bus.Subscribe(events.EventLicenseActivated, invalidate)
		bus.Subscribe(events.EventLicenseRejected, invalidate)
		bus.Subscribe(events.EventLicenseDeleted, invalidate)
	}

	return dc
}

func (dc *DashboardCache) handleEvent(e events.Event) {
	ctx := context.Background()

	if userID, ok := e.Data["user_id"].(string); ok && userID != "" {
		if err := dc.cache.Delete(ctx, UserDashboardKey(userID)); err != nil {
			log.Printf("[CACHE] Dashboard invalidation failed for user %s: %v", userID, err)
		}
	}

	// The pending queue changes on every lifecycle transition.
	if err := dc.cache.Delete(ctx, AdminPendingKey()); err != nil {
		log.Printf("[CACHE] Pending queue invalidation failed: %v", err)
	}
}

// GetDashboard retrieves a cached dashboard projection. dest must be a
// pointer. A miss or Redis outage returns an error; callers fall back
// to the store.
func (dc *DashboardCache) GetDashboard(ctx context.Context, userID string, dest interface{}) error {
	return dc.cache.GetJSON(ctx, UserDashboardKey(userID), dest)
}

// SetDashboard stores a dashboard projection.
func (dc *DashboardCache) SetDashboard(ctx context.Context, userID string, value interface{}) error {
	return dc.cache.SetJSON(ctx, UserDashboardKey(userID), value, DefaultDashboardTTL)
}

// GetPending retrieves the cached admin pending queue.
func (dc *DashboardCache) GetPending(ctx context.Context, dest interface{}) error {
	return dc.cache.GetJSON(ctx, AdminPendingKey(), dest)
}

// SetPending stores the admin pending queue.
func (dc *DashboardCache) SetPending(ctx context.Context, value interface{}) error {
	return dc.cache.SetJSON(ctx, AdminPendingKey(), value, DefaultPendingTTL)
}
