package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"buffetpos/internal/cache"
	"buffetpos/internal/domain"
	"buffetpos/internal/store"
	"buffetpos/internal/xid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ProfileStore is the slice of the repository the auth manager reads.
type ProfileStore interface {
	GetProfileByUsername(ctx context.Context, username string) (*domain.Profile, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	profiles ProfileStore
	denylist cache.TokenDenylist
	now      func() time.Time
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, profiles ProfileStore, denylist cache.TokenDenylist) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if denylist == nil {
		denylist = cache.NewMemoryDenylist()
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		profiles: profiles,
		denylist: denylist,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || strings.TrimSpace(req.Password) == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	profile, err := a.profiles.GetProfileByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, fmt.Errorf("load profile: %w", err)
	}
	if !verifyPassword(profile.PasswordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !domain.IsValidRole(profile.Role) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(*profile, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	profile.PasswordHash = ""
	return domain.LoginResponse{
		AccessToken: token,
		Role:        profile.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
		Profile:     *profile,
	}, nil
}

func (a *AuthManager) ParseToken(ctx context.Context, tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || claims.ID == "" {
		return domain.Actor{}, ErrInvalidToken
	}

	revoked, err := a.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("check token denylist: %w", err)
	}
	if revoked {
		return domain.Actor{}, ErrInvalidToken
	}

	actor := domain.Actor{ID: sub, Username: claims.Username, Role: claims.Role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		actor.Expires = claims.ExpiresAt.Time
	}
	return actor, nil
}

// Revoke denies the actor's token until it would have expired anyway.
func (a *AuthManager) Revoke(ctx context.Context, actor domain.Actor) error {
	if actor.TokenID == "" {
		return nil
	}
	until := actor.Expires
	if until.IsZero() {
		until = a.now().Add(a.tokenTTL)
	}
	return a.denylist.Revoke(ctx, actor.TokenID, until)
}

func (a *AuthManager) sign(profile domain.Profile, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        xid.New(),
			Subject:   profile.ID,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "buffetpos",
		},
		Username: profile.Username,
		Role:     profile.Role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
