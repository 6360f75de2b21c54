// Package auth implements the TokenService (spec C5): bearer-token
// mint/verify, refresh-token lifecycle, and request-scoped identity
// extraction. Grounded on applications/auth/manager.go's golang-jwt/jwt/v5
// HS256 pattern, generalized from that single-user-map manager into one
// backed by a persisted RefreshStore so rotation is linearizable against the
// store per spec.md §5's ordering guarantees.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Error taxonomy (spec.md §4.2).
var (
	ErrMalformed   = errors.New("malformed token")
	ErrBadSignature = errors.New("invalid token signature")
	ErrExpired     = errors.New("token expired")
	ErrRevoked     = errors.New("refresh token revoked")
	ErrUnknownUser = errors.New("unknown user")
)

// Claims is the bearer-token payload.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// RefreshToken is the persisted record backing refresh-token rotation.
type RefreshToken struct {
	Token     string
	UserID    string
	Username  string
	Roles     []string
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
	CreatedAt time.Time
}

// RefreshStore is the persistence seam TokenService rotates against. The
// concrete implementation lives in internal/database so pkg/auth stays free
// of a database import (one-way dependency, per §9's design note on avoiding
// cyclic component references).
type RefreshStore interface {
	Insert(ctx context.Context, rt RefreshToken) error
	Get(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

// Service is the TokenService.
type Service struct {
	secret              []byte
	store               RefreshStore
	accessTokenTTL      time.Duration
	refreshTokenTTLDays int
}

// NewService builds a TokenService. secret must be non-empty.
func NewService(secret string, store RefreshStore, accessTokenTTLHours, refreshTokenTTLDays int) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if accessTokenTTLHours <= 0 {
		accessTokenTTLHours = 24
	}
	if refreshTokenTTLDays <= 0 {
		refreshTokenTTLDays = 30
	}
	return &Service{
		secret:              []byte(secret),
		store:               store,
		accessTokenTTL:      time.Duration(accessTokenTTLHours) * time.Hour,
		refreshTokenTTLDays: refreshTokenTTLDays,
	}, nil
}

// IssueAccess mints a signed bearer token carrying identity claims.
func (s *Service) IssueAccess(userID, username string, roles []string) (string, time.Duration, error) {
	now := time.Now().UTC()
	exp := now.Add(s.accessTokenTTL)
	claims := Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        newJTI(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}
	return signed, s.accessTokenTTL, nil
}

// IssueRefresh mints and persists a new opaque refresh token.
func (s *Service) IssueRefresh(ctx context.Context, userID, username string, roles []string) (string, time.Time, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	exp := now.AddDate(0, 0, s.refreshTokenTTLDays)
	rt := RefreshToken{
		Token:     token,
		UserID:    userID,
		Username:  username,
		Roles:     roles,
		ExpiresAt: exp,
		CreatedAt: now,
	}
	if err := s.store.Insert(ctx, rt); err != nil {
		return "", time.Time{}, fmt.Errorf("persist refresh token: %w", err)
	}
	return token, exp, nil
}

// Rotate revokes oldRefresh and issues a fresh access+refresh pair,
// preserving (userId, username, roles) lineage. After Rotate returns, a
// subsequent Identify/validate against oldRefresh fails (spec.md §5).
func (s *Service) Rotate(ctx context.Context, oldRefresh string) (accessToken string, newRefresh string, expiresIn time.Duration, err error) {
	rt, err := s.store.Get(ctx, oldRefresh)
	if err != nil {
		return "", "", 0, fmt.Errorf("lookup refresh token: %w", err)
	}
	if rt == nil {
		return "", "", 0, ErrUnknownUser
	}
	if rt.Revoked {
		return "", "", 0, ErrRevoked
	}
	if time.Now().UTC().After(rt.ExpiresAt) {
		return "", "", 0, ErrExpired
	}

	if err := s.store.Revoke(ctx, oldRefresh); err != nil {
		return "", "", 0, fmt.Errorf("revoke old refresh token: %w", err)
	}

	access, ttl, err := s.IssueAccess(rt.UserID, rt.Username, rt.Roles)
	if err != nil {
		return "", "", 0, err
	}
	refresh, _, err := s.IssueRefresh(ctx, rt.UserID, rt.Username, rt.Roles)
	if err != nil {
		return "", "", 0, err
	}
	return access, refresh, ttl, nil
}

// Revoke invalidates a refresh token explicitly (logout).
func (s *Service) Revoke(ctx context.Context, refresh string) error {
	return s.store.Revoke(ctx, refresh)
}

// Validate parses and verifies a bearer access token.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrBadSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Identity is the caller identity extracted from a request.
type Identity struct {
	UserID   string
	Username string
	Roles    []string
}

// Identify reads "Authorization: Bearer <t>" from request headers, validates
// it, and returns the caller identity.
func (s *Service) Identify(header http.Header) (*Identity, error) {
	raw := header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return nil, ErrMalformed
	}
	token := strings.TrimPrefix(raw, prefix)
	claims, err := s.Validate(token)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: claims.Subject, Username: claims.Username, Roles: claims.Roles}, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func newJTI() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
