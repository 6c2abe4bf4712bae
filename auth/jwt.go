package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT claim set issued by the external auth collaborator.
// Token issuance (and the refresh flow) lives there; this side only
// verifies signatures and expiry.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates HMAC-signed bearer tokens.
type JWTAuthenticator struct {
	signingKey []byte
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// NewJWTAuthenticator creates a JWT authenticator with the shared
// signing key.
func NewJWTAuthenticator(signingKey []byte) *JWTAuthenticator {
	return &JWTAuthenticator{signingKey: signingKey}
}

// Authenticate parses and verifies the token, returning the identity
// embedded in its claims. Any parse, signature, or expiry failure maps
// to ErrUnauthorized; the concrete cause is wrapped for logging.
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %q", t.Method.Alg())
		}
		return a.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
