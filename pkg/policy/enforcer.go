package policy

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/google/uuid"

	"github.com/ledgerline/tenantguard/pkg/identity"
	"github.com/ledgerline/tenantguard/pkg/observability"
	"github.com/ledgerline/tenantguard/pkg/roles"
	"github.com/ledgerline/tenantguard/pkg/tenant"
)

// EnforcerConfig tunes the enforcer's role cache and metrics.
type EnforcerConfig struct {
	// RoleCacheSize bounds the (user, business) role cache. Zero disables
	// caching entirely: every check hits the memberships table.
	RoleCacheSize int
	// RoleCacheTTL bounds how stale a cached role may be. Revocations take
	// at most this long to reach the enforcer.
	RoleCacheTTL time.Duration
	Metrics      *observability.Metrics
}

// DefaultEnforcerConfig returns the default enforcer configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		RoleCacheSize: 4096,
		RoleCacheTTL:  10 * time.Second,
	}
}

type roleEntry struct {
	role   roles.Role
	member bool
}

// Enforcer evaluates registered policies for concrete rows. All outcomes,
// including infrastructure failures during membership lookup, surface as
// Decisions; a lookup failure denies.
type Enforcer struct {
	registry  *Registry
	resolver  *tenant.Resolver
	roleCache *lru.LRU[string, roleEntry]
	metrics   *observability.Metrics
}

// NewEnforcer creates an enforcer over the given registry and membership
// resolver.
func NewEnforcer(registry *Registry, resolver *tenant.Resolver, config *EnforcerConfig) *Enforcer {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	e := &Enforcer{
		registry: registry,
		resolver: resolver,
		metrics:  config.Metrics,
	}
	if config.RoleCacheSize > 0 {
		e.roleCache = lru.NewLRU[string, roleEntry](config.RoleCacheSize, nil, config.RoleCacheTTL)
	}
	return e
}

// Authorize decides whether the calling principal may perform op on the
// given row of resource. The decision is final and fail-closed: callers
// treat a deny exactly like an absent row.
func (e *Enforcer) Authorize(ctx context.Context, resource string, op Operation, row Row) Decision {
	start := time.Now()
	decision := e.evaluate(ctx, resource, op, row)
	if e.metrics != nil {
		e.metrics.RecordDecision(resource, string(op), decision.Allowed, time.Since(start))
	}
	if !decision.Allowed {
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"resource":  resource,
			"operation": string(op),
			"reason":    decision.Reason,
		}).Debug("authorization denied")
	}
	return decision
}

func (e *Enforcer) evaluate(ctx context.Context, resource string, op Operation, row Row) Decision {
	if !op.Valid() {
		return deny(resource, op, "unknown operation")
	}

	// Trusted services bypass row-level checks entirely.
	if identity.IsService(ctx) {
		return allow(resource, op, "service principal")
	}

	p, ok := e.registry.Get(resource)
	if !ok {
		return deny(resource, op, "no policy registered")
	}

	userID := identity.CurrentUserID(ctx)

	switch p.Scope {
	case ScopePublic:
		if op == OpSelect {
			if p.SelectCondition != nil && !p.SelectCondition(ctx, row) {
				return deny(resource, op, "select condition not met")
			}
			return allow(resource, op, "public read")
		}
		if userID == identity.NilUserID {
			return deny(resource, op, "no identity")
		}
		return e.checkTenantWrite(ctx, p, op, row)

	case ScopeOwner:
		if userID == identity.NilUserID {
			return deny(resource, op, "no identity")
		}
		if row.OwnerID == uuid.Nil || row.OwnerID != userID {
			return deny(resource, op, "not the row owner")
		}
		return allow(resource, op, "row owner")

	case ScopeTenant:
		if userID == identity.NilUserID {
			return deny(resource, op, "no identity")
		}
		if op == OpSelect {
			entry, err := e.roleFor(ctx, userID, row.BusinessID)
			if err != nil {
				return e.lookupFailure(resource, op, err)
			}
			if !entry.member {
				return deny(resource, op, "no active membership in business")
			}
			return allow(resource, op, "active member")
		}
		return e.checkTenantWrite(ctx, p, op, row)
	}

	return deny(resource, op, "unknown scope")
}

func (e *Enforcer) checkTenantWrite(ctx context.Context, p *ResourcePolicy, op Operation, row Row) Decision {
	set := p.WriteRoles(op)
	if len(set) == 0 {
		return deny(p.Resource, op, "operation not permitted for resource")
	}

	entry, err := e.roleFor(ctx, identity.CurrentUserID(ctx), row.BusinessID)
	if err != nil {
		return e.lookupFailure(p.Resource, op, err)
	}
	if !entry.member {
		return deny(p.Resource, op, "no active membership in business")
	}
	if !set.Contains(entry.role) {
		return deny(p.Resource, op, "role not permitted for operation")
	}
	return allow(p.Resource, op, "role permitted")
}

// roleFor resolves the caller's role in a business, memoized for the
// configured TTL.
func (e *Enforcer) roleFor(ctx context.Context, userID, businessID uuid.UUID) (roleEntry, error) {
	if userID == uuid.Nil || businessID == uuid.Nil {
		return roleEntry{}, nil
	}

	var key string
	if e.roleCache != nil {
		key = userID.String() + "|" + businessID.String()
		if entry, ok := e.roleCache.Get(key); ok {
			if e.metrics != nil {
				e.metrics.RoleCacheHitsTotal.Inc()
			}
			return entry, nil
		}
		if e.metrics != nil {
			e.metrics.RoleCacheMissesTotal.Inc()
		}
	}

	role, err := e.resolver.RoleInBusiness(ctx, businessID)
	entry := roleEntry{}
	switch {
	case err == nil:
		entry = roleEntry{role: role, member: true}
	case errors.Is(err, tenant.ErrMembershipNotFound):
		// Not a member: cached too, so repeated denied probes stay cheap.
	default:
		return roleEntry{}, err
	}

	if e.roleCache != nil {
		e.roleCache.Add(key, entry)
	}
	return entry, nil
}

func (e *Enforcer) lookupFailure(resource string, op Operation, err error) Decision {
	if e.metrics != nil {
		e.metrics.AuthzLookupErrorsTotal.WithLabelValues(resource).Inc()
	}
	return deny(resource, op, "membership lookup failed: "+err.Error())
}
