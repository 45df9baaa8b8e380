// Package auth provides JWT authentication for the HTTP API.
// It validates bearer tokens, exposes the caller's identity claims to
// downstream middleware, and gates admin-only endpoints by role.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the caller identity the enforcement layers need:
// who is asking (UserID), how much they may ask (Role), and whose
// monthly quota the request consumes (OrganizationID, Plan).
type Claims struct {
	// UserID identifies the authenticated user. Mirrors the "sub" claim.
	UserID string `json:"sub"`

	// Role determines the per-user rate limit (viewer, user, admin,
	// superadmin).
	Role string `json:"role"`

	// OrganizationID is the organization whose quota this user consumes.
	// Empty for users without an organization; they are not metered.
	OrganizationID string `json:"org_id,omitempty"`

	// Plan is the organization's subscription plan (free, pro,
	// enterprise).
	Plan string `json:"plan,omitempty"`

	jwt.RegisteredClaims
}

type ctxKey string

const ctxClaims ctxKey = "claims"

// WithClaims returns a context carrying the caller's claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxClaims, claims)
}

// FromContext returns the claims stored by the authentication
// middleware, or nil if the request was not authenticated.
func FromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ctxClaims).(*Claims)
	return claims
}
