package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"buffetpos/internal/cache"
	"buffetpos/internal/domain"
	"buffetpos/internal/store"
)

type profileStoreStub struct {
	profiles map[string]domain.Profile
}

func (s profileStoreStub) GetProfileByUsername(_ context.Context, username string) (*domain.Profile, error) {
	p, ok := s.profiles[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func newStubAuth(t *testing.T) *AuthManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("pass1234"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	profiles := profileStoreStub{profiles: map[string]domain.Profile{
		"till1":  {ID: "u-1", Username: "till1", Role: domain.RoleCashier, PasswordHash: string(hash)},
		"legacy": {ID: "u-2", Username: "legacy", Role: domain.RoleCashier, PasswordHash: "pass1234"},
	}}
	return NewAuthManager("test-secret", time.Hour, profiles, cache.NewMemoryDenylist())
}

func TestLoginIssuesTokenWithIdentity(t *testing.T) {
	manager := newStubAuth(t)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " TILL1 ", Password: "pass1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleCashier {
		t.Fatalf("unexpected role %q", resp.Role)
	}
	if resp.Profile.PasswordHash != "" {
		t.Fatalf("login response must not carry the password hash")
	}

	actor, err := manager.ParseToken(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.ID != "u-1" || actor.Username != "till1" || actor.Role != domain.RoleCashier {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if actor.TokenID == "" {
		t.Fatalf("expected token id in claims")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	manager := newStubAuth(t)

	cases := []domain.LoginRequest{
		{Username: "till1", Password: "wrong"},
		{Username: "nobody", Password: "pass1234"},
		{Username: "legacy", Password: "pass1234"},
		{Username: "", Password: ""},
	}
	for _, req := range cases {
		if _, err := manager.Login(context.Background(), req); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials for %q, got %v", req.Username, err)
		}
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	manager := newStubAuth(t)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "till1", Password: "pass1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	actor, err := manager.ParseToken(context.Background(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}

	if err := manager.Revoke(context.Background(), actor); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := manager.ParseToken(context.Background(), resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestParseTokenRejectsForeignSignatures(t *testing.T) {
	manager := newStubAuth(t)

	other := NewAuthManager("another-secret", time.Hour, profileStoreStub{}, nil)
	forged, err := other.sign(domain.Profile{ID: "u-1", Username: "till1", Role: domain.RoleAdmin}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(context.Background(), forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}

	none := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.MapClaims{"sub": "u-1", "role": "admin", "jti": "x"})
	unsigned, err := none.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := manager.ParseToken(context.Background(), unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected alg=none token to be rejected, got %v", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := newStubAuth(t)
	token, err := manager.sign(domain.Profile{ID: "u-1", Username: "till1", Role: domain.RoleCashier}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := manager.ParseToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
