// Package auth validates connection-time credentials for the realtime
// channel. A connection is authenticated exactly once, before any room
// interaction; a failed check refuses the connection outright.
package auth

import (
	"context"
	"errors"
)

// Identity represents an authenticated caller.
type Identity struct {
	// UserID is the authenticated user's record identifier, minted by the
	// external record layer.
	UserID string `json:"user_id"`

	// Email is the user's address, when the credential carries one.
	Email string `json:"email,omitempty"`

	// Role is the user's coarse permission role (e.g. "member", "admin").
	Role string `json:"role,omitempty"`
}

// Authenticator validates a bearer credential and returns an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrUnauthorized indicates credential verification failed. Connections
// failing with it must be refused before a session is created.
var ErrUnauthorized = errors.New("auth: unauthorized")

// ── Static token authenticator ──────────────────────

// StaticEntry maps a token to an identity.
type StaticEntry struct {
	Token    string
	Identity Identity
}

// StaticAuthenticator validates tokens against a fixed list. Useful for
// tests and service-to-service credentials.
type StaticAuthenticator struct {
	tokens map[string]*Identity
}

// NewStaticAuthenticator creates a static token authenticator.
func NewStaticAuthenticator(entries ...StaticEntry) *StaticAuthenticator {
	tokens := make(map[string]*Identity, len(entries))
	for _, e := range entries {
		ident := e.Identity
		tokens[e.Token] = &ident
	}
	return &StaticAuthenticator{tokens: tokens}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	ident, ok := a.tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return ident, nil
}

// ── No-op authenticator ─────────────────────────────

// NoopAuthenticator accepts every token as an anonymous member.
// Use for development only.
type NoopAuthenticator struct{}

func (a *NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{UserID: "anonymous", Role: "member"}, nil
}

// ── Composite authenticator ─────────────────────────

// CompositeAuthenticator tries multiple authenticators in order.
// The first successful authentication wins.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator chains multiple authenticators.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	return &CompositeAuthenticator{authenticators: auths}
}

func (c *CompositeAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	for _, a := range c.authenticators {
		ident, err := a.Authenticate(ctx, token)
		if err == nil {
			return ident, nil
		}
	}
	return nil, ErrUnauthorized
}
