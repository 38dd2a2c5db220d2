package api

import (
	"context"
	"net/http"

	"github.com/raven-automation/ravenctl/internal/core"
)

// CapAuth names the authentication capability.
const CapAuth = "auth"

// AuthCapability covers login, account creation and logout.
type AuthCapability struct {
	b *Base
}

// AuthMethods is the authentication capability factory.
func AuthMethods() Factory {
	return Factory{Name: CapAuth, New: func(b *Base) Capability {
		return &AuthCapability{b: b}
	}}
}

// Name implements Capability.
func (a *AuthCapability) Name() string { return CapAuth }

type userSpec struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates the current session. On success the session is
// reloaded so the new user is observable, and the user payload is returned;
// on failure nil is returned and the caller shows a generic notification.
func (a *AuthCapability) Login(ctx context.Context, username, password string) *core.User {
	resp := a.b.Request(ctx, "/auth/login", &RequestOptions{
		Method: http.MethodPost,
		Body:   userSpec{Username: username, Password: password},
	})
	user := DecodeOr[*core.User](resp, nil)
	if user != nil {
		a.b.Reload(ctx)
	}
	return user
}

// CreateUser registers a new account and logs the session into it. Reloads
// the session on success, same as Login.
func (a *AuthCapability) CreateUser(ctx context.Context, username, password string) *core.User {
	resp := a.b.Request(ctx, "/auth/create", &RequestOptions{
		Method: http.MethodPost,
		Body:   userSpec{Username: username, Password: password},
	})
	user := DecodeOr[*core.User](resp, nil)
	if user != nil {
		a.b.Reload(ctx)
	}
	return user
}

// Logout detaches the user from the session. Does not reload; the caller
// decides when to refresh.
func (a *AuthCapability) Logout(ctx context.Context) {
	a.b.Request(ctx, "/auth/logout", &RequestOptions{Method: http.MethodPost})
}
