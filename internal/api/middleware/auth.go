package middleware

import (
	"context"
	"errors"
	"net/http"

	"sweet_shop/internal/common"
	"sweet_shop/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const UsernameCtxKey contextKey = "username"

const (
	msgNoToken      = "No token provided. Please login."
	msgTokenExpired = "Token expired. Please login again."
	msgTokenInvalid = "Invalid token"
)

// Authenticator rejects requests without a valid bearer token. It expects
// jwtauth.Verifier to have run earlier in the chain.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err == nil && token == nil {
			err = jwtauth.ErrNoTokenFound
		}
		if err != nil {
			respondTokenError(w, security.ClassifyTokenError(err))
			return
		}

		identity, err := security.IdentityFromClaims(jwt.MapClaims(claims))
		if err != nil {
			respondTokenError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UsernameCtxKey, identity.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func respondTokenError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		common.RespondWithError(w, http.StatusUnauthorized, msgTokenExpired)
	case errors.Is(err, common.ErrTokenInvalid):
		common.RespondWithError(w, http.StatusUnauthorized, msgTokenInvalid)
	default:
		common.RespondWithError(w, http.StatusUnauthorized, msgNoToken)
	}
}

// GetUsernameFromContext returns the authenticated username; products are owned by username.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameCtxKey).(string)
	return username, ok && username != ""
}
