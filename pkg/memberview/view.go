// Package memberview maintains a Redis-backed denormalized view of active
// memberships for fast, read-heavy lookups.
//
// The view is explicitly non-authoritative. It is refreshed as a whole by
// rebuild-and-swap: a new generation of keys is written alongside the one
// being served, then a single pointer update makes it current. Readers are
// never blocked and never observe a half-built view; between refreshes the
// view may lag the memberships table. Authorization-critical checks must
// use the membership resolver directly and never this package.
package memberview

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/tenantguard/pkg/observability"
	"github.com/ledgerline/tenantguard/pkg/roles"
	"github.com/ledgerline/tenantguard/pkg/tenant"
)

const keyPrefix = "tenantguard:memberview"

// Config tunes the view.
type Config struct {
	// KeyTTL bounds how long a generation's keys live. It must exceed the
	// refresh cadence or lookups between refreshes go empty.
	KeyTTL  time.Duration
	Metrics *observability.Metrics
}

// DefaultConfig returns the default view configuration.
func DefaultConfig() *Config {
	return &Config{KeyTTL: 24 * time.Hour}
}

// View is the cached membership projection. Entries are keyed per user,
// mapping business id to the role held there.
type View struct {
	db      *sql.DB
	client  *redis.Client
	keyTTL  time.Duration
	metrics *observability.Metrics
	group   singleflight.Group
}

// New creates a view over the memberships database and a Redis client.
func New(db *sql.DB, client *redis.Client, config *Config) *View {
	if config == nil {
		config = DefaultConfig()
	}
	ttl := config.KeyTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &View{
		db:      db,
		client:  client,
		keyTTL:  ttl,
		metrics: config.Metrics,
	}
}

func currentKey() string {
	return keyPrefix + ":current"
}

func userKey(generation string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:user:%s", keyPrefix, generation, userID)
}

// Lookup returns the role the user holds in the business according to the
// view. ok is false when the user holds no active membership there, or when
// the view has never been refreshed.
func (v *View) Lookup(ctx context.Context, userID, businessID uuid.UUID) (roles.Role, bool, error) {
	generation, err := v.client.Get(ctx, currentKey()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read view generation: %w", err)
	}

	role, err := v.client.HGet(ctx, userKey(generation, userID), businessID.String()).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read view entry: %w", err)
	}
	return roles.Role(role), true, nil
}

// RolesFor returns every (business, role) pair the user holds according to
// the view. The map is empty when the user has no active memberships or the
// view has never been refreshed.
func (v *View) RolesFor(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]roles.Role, error) {
	generation, err := v.client.Get(ctx, currentKey()).Result()
	if err == redis.Nil {
		return map[uuid.UUID]roles.Role{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read view generation: %w", err)
	}

	entries, err := v.client.HGetAll(ctx, userKey(generation, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read view entries: %w", err)
	}

	result := make(map[uuid.UUID]roles.Role, len(entries))
	for field, role := range entries {
		businessID, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		result[businessID] = roles.Role(role)
	}
	return result, nil
}

// Refresh rebuilds the view from the memberships table and swaps it in.
// Concurrent callers are coalesced into one rebuild; none of them errors
// because another refresh is already running.
func (v *View) Refresh(ctx context.Context) error {
	start := time.Now()
	_, err, _ := v.group.Do("refresh", func() (interface{}, error) {
		return nil, v.rebuild(ctx)
	})

	if v.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		v.metrics.ViewRefreshTotal.WithLabelValues(status).Inc()
		v.metrics.ViewRefreshDuration.Observe(time.Since(start).Seconds())
	}
	return err
}

func (v *View) rebuild(ctx context.Context) error {
	query := `
		SELECT bu.user_id, bu.business_id, bu.role
		FROM business_users bu
		JOIN businesses b ON b.id = bu.business_id
		WHERE bu.status = $1 AND b.deleted_at IS NULL
	`
	rows, err := v.db.QueryContext(ctx, query, tenant.MembershipStatusActive)
	if err != nil {
		return fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	byUser := make(map[uuid.UUID]map[string]interface{})
	entries := 0
	for rows.Next() {
		var userID, businessID uuid.UUID
		var role string
		if err := rows.Scan(&userID, &businessID, &role); err != nil {
			return fmt.Errorf("failed to scan membership: %w", err)
		}
		if byUser[userID] == nil {
			byUser[userID] = make(map[string]interface{})
		}
		byUser[userID][businessID.String()] = role
		entries++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read memberships: %w", err)
	}

	// Write the new generation beside the serving one, then swap.
	generation := uuid.NewString()
	pipe := v.client.Pipeline()
	for userID, memberships := range byUser {
		key := userKey(generation, userID)
		pipe.HSet(ctx, key, memberships)
		pipe.Expire(ctx, key, v.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write view generation: %w", err)
	}

	previous, err := v.client.Get(ctx, currentKey()).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read view generation: %w", err)
	}

	if err := v.client.Set(ctx, currentKey(), generation, 0).Err(); err != nil {
		return fmt.Errorf("failed to swap view generation: %w", err)
	}

	if previous != "" && previous != generation {
		v.dropGeneration(ctx, previous)
	}

	if v.metrics != nil {
		v.metrics.ViewEntriesTotal.Set(float64(entries))
	}
	return nil
}

// dropGeneration deletes a superseded generation's keys. Failures are
// ignored: the keys expire on their own TTL.
func (v *View) dropGeneration(ctx context.Context, generation string) {
	pattern := fmt.Sprintf("%s:%s:user:*", keyPrefix, generation)
	iter := v.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		v.client.Del(ctx, iter.Val())
	}
}
