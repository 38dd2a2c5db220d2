package api

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Authorizer decides whether the current user satisfies permission scopes,
// gating UI affordances and the resource cache. Admin users short-circuit
// to true and anonymous callers to false, both without a network call;
// everything else delegates to the server-side validator through the scope
// capability, with the boolean memoized per distinct query until the user
// or session phase changes.
type Authorizer struct {
	mu     sync.Mutex
	client *Client
	scope  *ScopeCapability

	memo      map[string]bool
	memoUser  string
	memoPhase Phase
}

// NewAuthorizer creates an authorizer over a client composed with the scope
// capability. A client without it denies every non-admin query.
func NewAuthorizer(client *Client) *Authorizer {
	a := &Authorizer{
		client: client,
		memo:   make(map[string]bool),
	}
	if sc, ok := Find[*ScopeCapability](client); ok {
		a.scope = sc
	}
	return a
}

// HasAny reports whether the current user satisfies at least one of the
// given scopes. An empty scope list is unsatisfiable and returns false.
func (a *Authorizer) HasAny(ctx context.Context, scopes ...string) bool {
	if len(scopes) == 0 {
		return false
	}
	return a.check(ctx, scopes, false)
}

// HasAll reports whether the current user satisfies every one of the given
// scopes. An empty scope list is vacuously satisfied and returns true.
func (a *Authorizer) HasAll(ctx context.Context, scopes ...string) bool {
	if len(scopes) == 0 {
		return true
	}
	return a.check(ctx, scopes, true)
}

func (a *Authorizer) check(ctx context.Context, scopes []string, all bool) bool {
	auth := a.client.Auth()
	if !auth.Authenticated() {
		return false
	}
	if auth.User.Admin {
		return true
	}
	if a.scope == nil {
		return false
	}

	key := queryKey(scopes, all)

	a.mu.Lock()
	if a.memoUser != auth.User.ID || a.memoPhase != a.client.State() {
		a.memo = make(map[string]bool)
		a.memoUser = auth.User.ID
		a.memoPhase = a.client.State()
	}
	if cached, ok := a.memo[key]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	var result bool
	if all {
		result = a.scope.HasAllScopes(ctx, scopes...)
	} else {
		result = a.scope.HasAnyScopes(ctx, scopes...)
	}

	a.mu.Lock()
	a.memo[key] = result
	a.mu.Unlock()
	return result
}

func queryKey(scopes []string, all bool) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)

	key := strings.Join(sorted, "\x1f")
	if all {
		return "all\x1f" + key
	}
	return "any\x1f" + key
}
