package tenant

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the tenant schema.
// The schema mirrors the production migrations minus postgres-only defaults.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE businesses (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			industry TEXT,
			status TEXT NOT NULL DEFAULT 'trial',
			subscription_tier TEXT NOT NULL DEFAULT 'starter',
			subscription_status TEXT NOT NULL DEFAULT 'trialing',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);

		CREATE TABLE business_users (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			invited_by TEXT,
			joined_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(business_id, user_id)
		);

		CREATE TABLE business_invitations (
			id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
			email TEXT NOT NULL,
			role TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			invited_by TEXT NOT NULL,
			invited_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			accepted_at TIMESTAMP,
			accepted_by TEXT,
			UNIQUE(business_id, email)
		);
	`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}

	return db
}
