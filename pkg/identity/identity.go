// Package identity resolves the calling user from verified bearer-token
// claims and threads that identity through a request-scoped context.
//
// The resolved Principal is carried on the context, never in package-level
// state, so concurrent requests cannot observe each other's identity.
// Absence of identity is not an error: CurrentUserID degrades to the nil
// sentinel UUID, which matches no row anywhere downstream (fail-closed).
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/contextkeys"
)

// NilUserID is the well-known sentinel returned when no verified identity
// is present. All identity-based filters treat it as matching nothing.
var NilUserID = uuid.Nil

// Principal holds the verified identity of the current caller.
type Principal struct {
	// UserID is the subject identifier extracted from the verified token.
	UserID uuid.UUID `json:"user_id"`

	// Email is the verified email claim, when present.
	Email string `json:"email,omitempty"`

	// TokenID is the token's unique identifier (jti claim), used for audit
	// correlation.
	TokenID string `json:"token_id,omitempty"`

	// Service marks a trusted backend service principal. Service principals
	// receive the unconditional policy bypass and must never be minted for
	// end-user-facing callers.
	Service bool `json:"service,omitempty"`
}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return contextkeys.WithPrincipal(ctx, p)
}

// FromContext returns the principal carried by ctx, or nil when the request
// is anonymous.
func FromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(contextkeys.PrincipalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// CurrentUserID returns the calling user's id, or NilUserID when no verified
// identity is present. It never fails and is side-effect free, so it is safe
// to call repeatedly from every predicate evaluated for one request.
func CurrentUserID(ctx context.Context) uuid.UUID {
	p := FromContext(ctx)
	if p == nil {
		return NilUserID
	}
	return p.UserID
}

// IsAnonymous reports whether the context carries no usable identity.
func IsAnonymous(ctx context.Context) bool {
	return CurrentUserID(ctx) == NilUserID
}

// IsService reports whether the context carries a trusted service principal.
func IsService(ctx context.Context) bool {
	p := FromContext(ctx)
	return p != nil && p.Service
}
