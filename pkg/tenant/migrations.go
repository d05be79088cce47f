package tenant

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all tenant-layer migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create businesses table",
			SQL: `
				CREATE TABLE IF NOT EXISTS businesses (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					industry VARCHAR(100),
					status VARCHAR(20) NOT NULL DEFAULT 'trial',
					subscription_tier VARCHAR(50) NOT NULL DEFAULT 'starter',
					subscription_status VARCHAR(20) NOT NULL DEFAULT 'trialing',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					deleted_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_businesses_slug ON businesses(slug);
				CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
				CREATE INDEX IF NOT EXISTS idx_businesses_deleted_at ON businesses(deleted_at);
			`,
		},
		{
			Version:     2,
			Description: "Create business_users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS business_users (
					id UUID PRIMARY KEY,
					business_id UUID NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
					user_id UUID NOT NULL,
					role VARCHAR(20) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					invited_by UUID,
					joined_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(business_id, user_id)
				);

				CREATE INDEX IF NOT EXISTS idx_business_users_user_id ON business_users(user_id);
				CREATE INDEX IF NOT EXISTS idx_business_users_business_id ON business_users(business_id);
				CREATE INDEX IF NOT EXISTS idx_business_users_status ON business_users(status);
				CREATE INDEX IF NOT EXISTS idx_business_users_user_status ON business_users(user_id, status);
			`,
		},
		{
			Version:     3,
			Description: "Create business_invitations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS business_invitations (
					id UUID PRIMARY KEY,
					business_id UUID NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role VARCHAR(20) NOT NULL,
					token VARCHAR(64) NOT NULL UNIQUE,
					invited_by UUID NOT NULL,
					invited_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					accepted_by UUID,
					UNIQUE(business_id, email)
				);

				CREATE INDEX IF NOT EXISTS idx_business_invitations_token ON business_invitations(token);
				CREATE INDEX IF NOT EXISTS idx_business_invitations_business_id ON business_invitations(business_id);
				CREATE INDEX IF NOT EXISTS idx_business_invitations_expires_at ON business_invitations(expires_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	// Create migration tracking table
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenant_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM tenant_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to read migration versions: %w", err)
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tenant_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
