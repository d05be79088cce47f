package middleware

import (
	"net/http"
	"strings"

	"github.com/ledgerline/tenantguard/pkg/identity"
	"github.com/ledgerline/tenantguard/pkg/observability"
)

// AuthMiddleware resolves bearer tokens into a principal on the request
// context. In optional mode a missing or invalid token degrades to an
// anonymous request instead of rejecting it; downstream authorization
// then denies row access on its own terms.
type AuthMiddleware struct {
	resolver identity.Resolver
	optional bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver identity.Resolver, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with token resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "missing authorization header")
			return
		}

		principal, err := m.resolver.Resolve(r.Context(), token)
		if err != nil {
			if m.optional {
				observability.FromContext(r.Context()).WithError(err).Debug("token resolution failed, continuing anonymous")
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorizedResponse(w, "invalid or expired token")
			return
		}

		ctx := identity.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization: Bearer header
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
