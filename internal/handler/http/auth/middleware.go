package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"quotaguard/internal/handler/http/respond"
)

// Authn is an authentication middleware that requires a valid JWT
// bearer token and stores the caller's claims in the request context.
//
// Tokens must be signed with HS256 using the JWT_SECRET environment
// variable. Expired tokens, tokens signed with any other method, and
// requests without a bearer token are rejected with 401.
//
// Downstream middleware reads the claims via FromContext: the user
// rate limiter keys on UserID and Role, the quota tracker on
// OrganizationID and Plan.
func Authn(next http.Handler) http.Handler {
	secret := []byte(os.Getenv("JWT_SECRET"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := validateBearer(r.Header.Get("Authorization"), secret)
		if err != nil {
			respond.SafeError(w, http.StatusUnauthorized, fmt.Errorf("unauthorized: %w", err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireRole gates a handler behind one or more roles. Requests whose
// claims carry none of the listed roles are rejected with 403; requests
// without claims with 401.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := FromContext(r.Context())
			if claims == nil {
				respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: missing claims"))
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respond.SafeError(w, http.StatusForbidden, errors.New("forbidden"))
		})
	}
}

func validateBearer(authz string, secret []byte) (*Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return nil, errors.New("missing bearer token")
	}
	tokenString := strings.TrimPrefix(authz, prefix)

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("invalid sub claim")
	}
	if claims.Role == "" {
		return nil, errors.New("invalid role claim")
	}
	return claims, nil
}
