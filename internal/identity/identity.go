// Package identity is the portal's identity client: account sign-up and
// sign-in, department SSO, sign-out, and a stream of identity changes.
package identity

import (
	"context"

	"github.com/deptconnect/portal/internal/live"
)

// Identity is the authenticated principal as seen by the rest of the portal.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client is the identity surface the session controller depends on.
//
// OnIdentityChanged delivers the current identity (nil when signed out) once
// the client has determined it, then every change in order.
type Client interface {
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignInWithIDToken(ctx context.Context, rawIDToken string) (Identity, error)
	SignOut(ctx context.Context) error
	OnIdentityChanged(fn func(*Identity)) live.Cancel
	// Credential returns the credential of the current session, or "".
	Credential() string
	// Authorize returns the identity id raw was issued to if raw is the
	// credential of the current session.
	Authorize(ctx context.Context, raw string) (string, error)
}

// Unavailable is the Client used when the backend is not configured. Every
// operation fails with the configuration error and no identity is ever
// reported.
type Unavailable struct {
	Err error
}

func (u Unavailable) SignUp(context.Context, string, string) (Identity, error) {
	return Identity{}, u.Err
}

func (u Unavailable) SignIn(context.Context, string, string) (Identity, error) {
	return Identity{}, u.Err
}

func (u Unavailable) SignInWithIDToken(context.Context, string) (Identity, error) {
	return Identity{}, u.Err
}

func (u Unavailable) SignOut(context.Context) error { return u.Err }

func (u Unavailable) OnIdentityChanged(func(*Identity)) live.Cancel { return func() {} }

func (u Unavailable) Credential() string { return "" }

func (u Unavailable) Authorize(context.Context, string) (string, error) { return "", u.Err }
