package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huddlehq/huddle/auth"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestJWTAuthenticator(t *testing.T) {
	t.Parallel()

	a := auth.NewJWTAuthenticator(testKey)

	token := signToken(t, auth.Claims{
		Email: "dev@example.com",
		Role:  "member",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	ident, err := a.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", ident.UserID, "user-1")
	}
	if ident.Email != "dev@example.com" {
		t.Errorf("Email = %q, want %q", ident.Email, "dev@example.com")
	}
	if ident.Role != "member" {
		t.Errorf("Role = %q, want %q", ident.Role, "member")
	}
}

func TestJWTAuthenticatorRejects(t *testing.T) {
	t.Parallel()

	a := auth.NewJWTAuthenticator(testKey)

	expired := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	wrongKey := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	wrongKeySigned, err := wrongKey.SignedString([]byte("other-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	noSubject := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"wrong key", wrongKeySigned},
		{"missing subject", noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Authenticate(context.Background(), tt.token)
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Errorf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestStaticAuthenticator(t *testing.T) {
	t.Parallel()

	a := auth.NewStaticAuthenticator(auth.StaticEntry{
		Token:    "svc-token",
		Identity: auth.Identity{UserID: "svc-1", Role: "admin"},
	})

	ident, err := a.Authenticate(context.Background(), "svc-token")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.UserID != "svc-1" {
		t.Errorf("UserID = %q, want %q", ident.UserID, "svc-1")
	}

	if _, err := a.Authenticate(context.Background(), "unknown"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCompositeAuthenticator(t *testing.T) {
	t.Parallel()

	a := auth.NewCompositeAuthenticator(
		auth.NewStaticAuthenticator(auth.StaticEntry{
			Token:    "svc-token",
			Identity: auth.Identity{UserID: "svc-1"},
		}),
		auth.NewJWTAuthenticator(testKey),
	)

	if _, err := a.Authenticate(context.Background(), "svc-token"); err != nil {
		t.Errorf("static path failed: %v", err)
	}

	token := signToken(t, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-2",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := a.Authenticate(context.Background(), token); err != nil {
		t.Errorf("jwt path failed: %v", err)
	}

	if _, err := a.Authenticate(context.Background(), "bogus"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}
