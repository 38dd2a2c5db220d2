package api

import (
	"context"
	"net/http"

	"github.com/raven-automation/ravenctl/internal/core"
)

// CapScope names the permission scope capability.
const CapScope = "scope"

// ScopeCapability covers scope listing and server-side validation.
type ScopeCapability struct {
	b *Base
}

// ScopeMethods is the scope capability factory.
func ScopeMethods() Factory {
	return Factory{Name: CapScope, New: func(b *Base) Capability {
		return &ScopeCapability{b: b}
	}}
}

// Name implements Capability.
func (s *ScopeCapability) Name() string { return CapScope }

// OwnScopes returns the scope tree granted to the current user. Empty on
// failure.
func (s *ScopeCapability) OwnScopes(ctx context.Context) core.ScopeRecords {
	return DecodeOr(s.b.Request(ctx, "/auth/scopes", nil), core.ScopeRecords{})
}

// AllScopes returns the full scope tree known to the server. Empty on
// failure.
func (s *ScopeCapability) AllScopes(ctx context.Context) core.ScopeRecords {
	return DecodeOr(s.b.Request(ctx, "/auth/scopes/all", nil), core.ScopeRecords{})
}

// PathScopes returns the scope subtree rooted at a dot-delimited path, or
// nil when the path is unknown.
func (s *ScopeCapability) PathScopes(ctx context.Context, path string) *core.Scope {
	return DecodeOr[*core.Scope](s.b.Request(ctx, "/auth/scopes/tree/"+path, nil), nil)
}

type validateScopes struct {
	Scopes []string `json:"scopes"`
	All    bool     `json:"all,omitempty"`
}

// HasAnyScopes asks the server whether the current user satisfies at least
// one of the given scopes. Wildcard segments are resolved server-side.
func (s *ScopeCapability) HasAnyScopes(ctx context.Context, scopes ...string) bool {
	return DecodeOr(s.b.Request(ctx, "/auth/scopes/validate", &RequestOptions{
		Method: http.MethodPost,
		Body:   validateScopes{Scopes: scopes},
	}), false)
}

// HasAllScopes asks the server whether the current user satisfies every one
// of the given scopes.
func (s *ScopeCapability) HasAllScopes(ctx context.Context, scopes ...string) bool {
	return DecodeOr(s.b.Request(ctx, "/auth/scopes/validate", &RequestOptions{
		Method: http.MethodPost,
		Body:   validateScopes{Scopes: scopes, All: true},
	}), false)
}
