package api

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/raven-automation/ravenctl/internal/core"
)

// RequestFunc is the shared request surface capabilities build on.
type RequestFunc func(ctx context.Context, endpoint string, opts *RequestOptions) Response

// ReloadFunc re-fetches the session bootstrap endpoint.
type ReloadFunc func(ctx context.Context) *core.AuthState

// inactiveResponse is the dummy failure returned when the session is not in
// the ready phase: dependent calls short-circuit instead of hitting the wire.
func inactiveResponse() Response {
	return Response{Success: false, StatusCode: 0, StatusText: "API not active."}
}

// Base exposes exactly the shared client surface: Request, Reload, State
// and Auth. Every capability is implemented purely in terms of it.
type Base struct {
	snap    Snapshot
	request RequestFunc
	reload  ReloadFunc
}

// State returns the phase the client was composed against.
func (b *Base) State() Phase {
	return b.snap.Phase
}

// Auth returns the composed-against AuthState, or nil outside the ready phase.
func (b *Base) Auth() *core.AuthState {
	if b.snap.Phase != PhaseReady {
		return nil
	}
	return b.snap.Auth
}

// Request issues an API request, short-circuiting to a dummy failure when
// the session is not ready.
func (b *Base) Request(ctx context.Context, endpoint string, opts *RequestOptions) Response {
	if b.snap.Phase != PhaseReady || b.request == nil {
		return inactiveResponse()
	}
	return b.request(ctx, endpoint, opts)
}

// Reload re-fetches the session. A no-op returning nil while loading.
func (b *Base) Reload(ctx context.Context) *core.AuthState {
	if b.snap.Phase == PhaseLoading || b.reload == nil {
		return nil
	}
	return b.reload(ctx)
}

// Capability is one coherent vertical slice of the server API, addable to a
// client independently of other capabilities.
type Capability interface {
	Name() string
}

// Factory constructs a named capability bound to a client's base.
type Factory struct {
	Name string
	New  func(b *Base) Capability
}

// Client is a composed API client: the base contract plus the union of the
// requested capabilities. Owned by the call site that composed it; sharing
// happens only through the Cached reuse predicate.
type Client struct {
	// InstanceID distinguishes rebuilt instances.
	InstanceID string

	base  *Base
	src   *Store
	names []string
	caps  map[string]Capability
}

// Compose builds a client from the store's current snapshot and the given
// capability factories, folded in list order. A later factory carrying an
// already-registered name silently replaces the earlier one. Zero factories
// is legal and yields a base-only client.
func Compose(store *Store, factories ...Factory) *Client {
	snap := store.Snapshot()
	c := compose(snap, store.Request, store.Reload, factories)
	c.src = store
	return c
}

// ComposeSnapshot builds a client against an explicit snapshot and
// request/reload functions. Test seam; production code goes through Compose.
func ComposeSnapshot(snap Snapshot, request RequestFunc, reload ReloadFunc, factories ...Factory) *Client {
	return compose(snap, request, reload, factories)
}

func compose(snap Snapshot, request RequestFunc, reload ReloadFunc, factories []Factory) *Client {
	base := &Base{snap: snap, request: request, reload: reload}
	caps := make(map[string]Capability, len(factories))
	for _, f := range factories {
		caps[f.Name] = f.New(base)
	}

	return &Client{
		InstanceID: uuid.NewString(),
		base:       base,
		names:      nameSet(factories),
		caps:       caps,
	}
}

// Request is sugar over the base contract.
func (c *Client) Request(ctx context.Context, endpoint string, opts *RequestOptions) Response {
	return c.base.Request(ctx, endpoint, opts)
}

// Reload is sugar over the base contract.
func (c *Client) Reload(ctx context.Context) *core.AuthState {
	return c.base.Reload(ctx)
}

// State returns the phase the client was composed against.
func (c *Client) State() Phase {
	return c.base.State()
}

// Auth returns the composed-against AuthState, or nil outside ready.
func (c *Client) Auth() *core.AuthState {
	return c.base.Auth()
}

// Capability returns the composed capability registered under name.
func (c *Client) Capability(name string) (Capability, bool) {
	impl, ok := c.caps[name]
	return impl, ok
}

// Names returns the sorted capability name set.
func (c *Client) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Find retrieves a composed capability by concrete type.
func Find[T Capability](c *Client) (T, bool) {
	for _, impl := range c.caps {
		if t, ok := impl.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// Reusable reports whether this client may serve a new composition request
// for the given snapshot and factory set without being rebuilt:
//
//  1. the requested capability name set is unchanged (order-independent);
//  2. the phases match;
//  3. loading and error phases need nothing more;
//  4. the ready phase additionally requires the same authenticated user id
//     (or both anonymous), the same session id, and the same session user id.
//
// Request/reload function identity is not comparable in Go, so sharing the
// same backing store stands in for it; Cached enforces that by construction.
func (c *Client) Reusable(snap Snapshot, factories ...Factory) bool {
	if !equalNames(c.names, nameSet(factories)) {
		return false
	}
	if c.base.snap.Phase != snap.Phase {
		return false
	}
	if snap.Phase != PhaseReady {
		return true
	}

	prev, next := c.base.snap.Auth, snap.Auth
	if prev == nil || next == nil {
		return prev == next
	}
	if !equalUserID(prev.User, next.User) {
		return false
	}
	if prev.Session.ID != next.Session.ID {
		return false
	}
	return equalStringPtr(prev.Session.UserID, next.Session.UserID)
}

// Cached returns prev when it was composed from the same store and is
// reusable for the store's current snapshot and factory set; otherwise it
// composes a fresh client. This is a pure equality predicate over the one
// current instance per call site, not a cache with eviction.
func Cached(prev *Client, store *Store, factories ...Factory) *Client {
	if prev != nil && prev.src == store && prev.Reusable(store.Snapshot(), factories...) {
		return prev
	}
	return Compose(store, factories...)
}

// Request adapts the store into a RequestFunc that short-circuits outside
// the ready phase.
func (s *Store) Request(ctx context.Context, endpoint string, opts *RequestOptions) Response {
	if s.Snapshot().Phase != PhaseReady {
		return inactiveResponse()
	}
	return s.transport.Do(ctx, endpoint, opts)
}

func nameSet(factories []Factory) []string {
	seen := make(map[string]struct{}, len(factories))
	var names []string
	for _, f := range factories {
		if _, dup := seen[f.Name]; dup {
			continue
		}
		seen[f.Name] = struct{}{}
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalUserID(a, b *core.User) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
