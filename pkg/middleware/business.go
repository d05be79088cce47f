package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ledgerline/tenantguard/pkg/roles"
	"github.com/ledgerline/tenantguard/pkg/tenant"
)

// BusinessContextMiddleware resolves the {business_id} or {business_slug}
// route variable and pins the business on the request context. Routes
// without either variable pass through unchanged.
func BusinessContextMiddleware(store *tenant.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			vars := mux.Vars(r)

			if idStr, ok := vars["business_id"]; ok {
				businessID, err := uuid.Parse(idStr)
				if err != nil {
					http.Error(w, "Invalid business ID", http.StatusBadRequest)
					return
				}

				business, err := store.GetBusiness(r.Context(), businessID)
				if err != nil {
					businessNotFound(w, err)
					return
				}

				ctx := tenant.WithBusiness(r.Context(), business)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if slug, ok := vars["business_slug"]; ok {
				business, err := store.GetBusinessBySlug(r.Context(), slug)
				if err != nil {
					businessNotFound(w, err)
					return
				}

				ctx := tenant.WithBusiness(r.Context(), business)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func businessNotFound(w http.ResponseWriter, err error) {
	if errors.Is(err, tenant.ErrBusinessNotFound) {
		http.Error(w, "Business not found", http.StatusNotFound)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// RequireMembership rejects requests whose caller is not an active
// member of the business pinned on the context.
func RequireMembership(resolver *tenant.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			business := tenant.CurrentBusiness(r.Context())
			if business == nil {
				forbiddenResponse(w, "no business context")
				return
			}

			member, err := resolver.BelongsToBusiness(r.Context(), business.ID)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !member {
				forbiddenResponse(w, "not a member of this business")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose caller does not hold the required
// role in the business pinned on the context.
func RequireRole(resolver *tenant.Resolver, required roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			business := tenant.CurrentBusiness(r.Context())
			if business == nil {
				forbiddenResponse(w, "no business context")
				return
			}

			allowed, err := resolver.HasRole(r.Context(), required)
			if err != nil {
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				forbiddenResponse(w, "insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
