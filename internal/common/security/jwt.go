package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sweet_shop/internal/common"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

const (
	claimUserID   = "user_id"
	claimUsername = "username"
)

// Identity is what a verified token asserts about its bearer.
type Identity struct {
	UserID   string
	Username string
}

// TokenManager signs and verifies HS256 bearer tokens.
// Rotating the key invalidates every outstanding token; there is no other revocation.
type TokenManager struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewTokenManager(key []byte, ttl time.Duration) *TokenManager {
	return &TokenManager{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
	}
}

// JWTAuth exposes the underlying verifier for jwtauth.Verifier.
func (m *TokenManager) JWTAuth() *jwtauth.JWTAuth {
	return m.auth
}

func (m *TokenManager) Issue(userID, username string) (string, error) {
	claims := jwt.MapClaims{
		claimUserID:   userID,
		claimUsername: username,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiryIn(claims, m.ttl)

	_, tokenString, err := m.auth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return tokenString, nil
}

// Verify returns common.ErrTokenExpired for an expired token and common.ErrTokenInvalid
// for anything else that fails decoding or signature checks.
func (m *TokenManager) Verify(ctx context.Context, tokenString string) (Identity, error) {
	token, err := jwtauth.VerifyToken(m.auth, tokenString)
	if err != nil {
		return Identity{}, ClassifyTokenError(err)
	}
	claims, err := token.AsMap(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
	return IdentityFromClaims(claims)
}

// ClassifyTokenError folds jwtauth verification errors into the two token failures callers distinguish.
func ClassifyTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwtauth.ErrNoTokenFound):
		return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	case errors.Is(err, jwtauth.ErrExpired):
		return common.ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", common.ErrTokenInvalid, err)
	}
}

func IdentityFromClaims(claims jwt.MapClaims) (Identity, error) {
	id, ok := claims[claimUserID].(string)
	if !ok || id == "" {
		return Identity{}, fmt.Errorf("%w: user_id claim is missing or not a string", common.ErrTokenInvalid)
	}
	username, ok := claims[claimUsername].(string)
	if !ok || username == "" {
		return Identity{}, fmt.Errorf("%w: username claim is missing or not a string", common.ErrTokenInvalid)
	}
	return Identity{UserID: id, Username: username}, nil
}
