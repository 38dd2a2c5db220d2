// Package resources maintains the in-memory resource snapshot: a bulk
// fetch on session readiness plus incremental patch-on-event updates.
package resources

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/raven-automation/ravenctl/internal/api"
	"github.com/raven-automation/ravenctl/internal/core"
	"github.com/raven-automation/ravenctl/internal/events"
)

// UpdateChannel is the event channel carrying resource state changes.
const UpdateChannel = "resource.update"

// viewScopes are the permission scopes that make a caller eligible to hold
// resource state at all.
var viewScopes = []string{"resources.all.*", "resources.plugin.*"}

type updatePayload struct {
	EntityID string `json:"entity_id"`
}

// Cache is the in-memory resource list. It populates only for scoped,
// authenticated sessions, replaces individual entries in place when a
// resource.update event names them, and clears itself when the viewer
// becomes ineligible. There is no deletion path: an update for a resource
// the server no longer returns is ignored, leaving the entry until the
// next bulk fetch.
type Cache struct {
	mu        sync.Mutex
	client    *api.Client
	authz     *api.Authorizer
	manager   *events.Manager
	logger    zerolog.Logger
	resources []core.Resource
	eligible  bool
	reg       events.Registration
	observers map[int]func([]core.Resource)
	nextObs   int
}

// NewCache creates a cache over a client composed with the resource and
// scope capabilities. The cache subscribes to resource.update immediately;
// call Sync to evaluate eligibility and perform the initial fetch.
func NewCache(client *api.Client, authz *api.Authorizer, manager *events.Manager, logger zerolog.Logger) *Cache {
	c := &Cache{
		client:    client,
		authz:     authz,
		manager:   manager,
		logger:    logger,
		observers: make(map[int]func([]core.Resource)),
	}
	c.reg = manager.Subscribe(UpdateChannel, c.onUpdate)
	return c
}

// Close removes the cache's event registration.
func (c *Cache) Close() {
	c.manager.Unsubscribe(c.reg)
}

// Snapshot returns a copy of the cached resource list.
func (c *Cache) Snapshot() []core.Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Resource, len(c.resources))
	copy(out, c.resources)
	return out
}

// OnChange registers an observer invoked after every cache replacement or
// patch. The returned function removes it.
func (c *Cache) OnChange(fn func([]core.Resource)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Sync re-evaluates eligibility and reconciles the cache: a bulk fetch on
// becoming eligible, a full clear on becoming ineligible.
func (c *Cache) Sync(ctx context.Context) {
	eligible := c.checkEligible(ctx)

	c.mu.Lock()
	was := c.eligible
	c.eligible = eligible
	c.mu.Unlock()

	switch {
	case eligible && !was:
		c.refresh(ctx)
	case !eligible && was:
		c.replaceAll(nil)
	}
}

// Refresh forces a bulk fetch regardless of the previous eligibility state,
// provided the viewer is currently eligible.
func (c *Cache) Refresh(ctx context.Context) {
	if !c.checkEligible(ctx) {
		c.mu.Lock()
		c.eligible = false
		c.mu.Unlock()
		c.replaceAll(nil)
		return
	}

	c.mu.Lock()
	c.eligible = true
	c.mu.Unlock()
	c.refresh(ctx)
}

func (c *Cache) checkEligible(ctx context.Context) bool {
	if c.client.State() != api.PhaseReady || !c.client.Auth().Authenticated() {
		return false
	}
	return c.authz.HasAny(ctx, viewScopes...)
}

func (c *Cache) refresh(ctx context.Context) {
	rc, ok := api.Find[*api.ResourceCapability](c.client)
	if !ok {
		c.logger.Error().Msg("resource capability not composed; cache cannot populate")
		return
	}
	list := rc.ListResources(ctx)
	c.logger.Debug().Int("count", len(list)).Msg("resource cache replaced")
	c.replaceAll(list)
}

func (c *Cache) replaceAll(list []core.Resource) {
	c.mu.Lock()
	c.resources = list
	c.mu.Unlock()
	c.notify()
}

// onUpdate handles one resource.update event: a single re-fetch of the
// named resource and an in-place replacement of the matching entry.
func (c *Cache) onUpdate(event core.Event) {
	c.mu.Lock()
	eligible := c.eligible
	c.mu.Unlock()
	if !eligible || event.Plugin == nil {
		return
	}

	var payload updatePayload
	if err := event.DecodeData(&payload); err != nil || payload.EntityID == "" {
		return
	}

	rc, ok := api.Find[*api.ResourceCapability](c.client)
	if !ok {
		return
	}

	updated := rc.GetResource(context.Background(), *event.Plugin, payload.EntityID)
	if updated == nil {
		return
	}

	c.mu.Lock()
	for i := range c.resources {
		if c.resources[i].ID == payload.EntityID && c.resources[i].Plugin == *event.Plugin {
			c.resources[i] = *updated
			break
		}
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Cache) notify() {
	c.mu.Lock()
	fns := make([]func([]core.Resource), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	snapshot := make([]core.Resource, len(c.resources))
	copy(snapshot, c.resources)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
