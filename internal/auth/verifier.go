// Package auth is the Auth Verifier component (spec §4.C): validates bearer
// tokens on the HTTP edge and query-string tokens on the WebSocket upgrade,
// and extracts the verified Identity.
package auth

import (
	"context"
	"strings"

	"streamgate-go/internal/core"
	"streamgate-go/pkg/token"
)

// RevocationChecker is the slice of the Session Cache the Auth Verifier
// depends on. Declaring it here rather than taking *sessioncache.Cache
// directly keeps the verifier testable without a real Redis instance.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jwtID string) (bool, error)
}

type Verifier struct {
	manager *token.Manager
	cache   RevocationChecker
}

func New(manager *token.Manager, cache RevocationChecker) *Verifier {
	return &Verifier{manager: manager, cache: cache}
}

// VerifyHTTP validates the Authorization header of an HTTP request.
func (v *Verifier) VerifyHTTP(ctx context.Context, authorizationHeader string) (core.Identity, error) {
	const prefix = "Bearer "
	if authorizationHeader == "" {
		return core.Identity{}, core.Unauthenticated("missing authorization header", nil)
	}
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return core.Identity{}, core.Unauthenticated("malformed authorization header", nil)
	}
	return v.verify(ctx, strings.TrimPrefix(authorizationHeader, prefix))
}

// VerifyWS validates the token query parameter of a WebSocket upgrade
// request (browsers cannot set headers on the upgrade request).
func (v *Verifier) VerifyWS(ctx context.Context, queryToken string) (core.Identity, error) {
	if queryToken == "" {
		return core.Identity{}, core.Unauthenticated("missing token", nil)
	}
	return v.verify(ctx, queryToken)
}

func (v *Verifier) verify(ctx context.Context, tokenString string) (core.Identity, error) {
	claims, err := v.manager.Verify(tokenString)
	if err != nil {
		return core.Identity{}, core.Unauthenticated("invalid token", err)
	}
	if v.cache != nil {
		revoked, err := v.cache.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Cache failures are non-fatal elsewhere, but a revocation
			// check we cannot perform must fail closed for auth.
			return core.Identity{}, core.Unauthenticated("revocation check failed", err)
		}
		if revoked {
			return core.Identity{}, core.Unauthenticated("token revoked", nil)
		}
	}
	return core.Identity{
		Subject:  claims.Subject,
		IssuedAt: claims.IssuedAt.Time,
	}, nil
}
