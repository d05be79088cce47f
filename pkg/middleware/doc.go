// Package middleware provides HTTP middleware for authentication and
// business context resolution.
//
// # Overview
//
// AuthMiddleware resolves Bearer tokens into a principal on the request
// context; in optional mode unauthenticated requests continue as
// anonymous callers and row-level authorization denies them downstream.
// BusinessContextMiddleware pins the business named by a {business_id}
// or {business_slug} route variable. RequireMembership and RequireRole
// gate routes on the pinned business.
//
// # Usage Example
//
//	router := mux.NewRouter()
//	auth := middleware.NewAuthMiddleware(resolver, true)
//	router.Use(auth.Handler)
//
//	biz := router.PathPrefix("/api/businesses/{business_id}").Subrouter()
//	biz.Use(middleware.BusinessContextMiddleware(store))
//	biz.Use(middleware.RequireMembership(tenantResolver))
//
//	admin := biz.PathPrefix("/settings").Subrouter()
//	admin.Use(middleware.RequireRole(tenantResolver, roles.RoleAdmin))
package middleware
