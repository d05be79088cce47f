package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/ledgerline/tenantguard/pkg/audit"
	"github.com/ledgerline/tenantguard/pkg/memberview"
	"github.com/ledgerline/tenantguard/pkg/observability"
	"github.com/ledgerline/tenantguard/pkg/policy"
	"github.com/ledgerline/tenantguard/pkg/tenant"
)

var (
	dbURL           = flag.String("db-url", getEnv("TENANTGUARD_POSTGRES_URL", "postgres://localhost/tenantguard?sslmode=disable"), "PostgreSQL connection URL")
	redisURL        = flag.String("redis-url", getEnv("TENANTGUARD_REDIS_URL", ""), "Redis address for the membership view (empty disables view commands)")
	policyFile      = flag.String("policy-file", getEnv("TENANTGUARD_POLICY_FILE", ""), "Policy YAML to validate")
	migrate         = flag.Bool("migrate", false, "Run schema migrations and exit")
	validatePolicy  = flag.Bool("validate-policy", false, "Validate the policy file and exit")
	refreshOnce     = flag.Bool("refresh-view", false, "Rebuild the membership view once and exit")
	refreshSchedule = flag.String("refresh-schedule", "", "Cron schedule for periodic membership view rebuilds")
	auditCleanup    = flag.Bool("audit-cleanup", false, "Delete expired audit events and invitations, then exit")
	retentionDays   = flag.Int("audit-retention-days", 90, "Audit event retention in days")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if *migrate {
		if err := tenant.RunMigrations(context.Background(), db); err != nil {
			log.Fatalf("Migrations failed: %v", err)
		}
		log.Println("Migrations completed successfully")
		return
	}

	if *validatePolicy {
		if *policyFile == "" {
			log.Fatal("--policy-file is required with --validate-policy")
		}
		cfg, err := policy.LoadConfig(*policyFile)
		if err != nil {
			log.Fatalf("Policy file invalid: %v", err)
		}
		policies, err := cfg.Policies()
		if err != nil {
			log.Fatalf("Policy file invalid: %v", err)
		}
		log.Printf("Policy file valid: %d resources", len(policies))
		return
	}

	if *auditCleanup {
		logger, err := audit.NewDBLogger(db)
		if err != nil {
			log.Fatalf("Failed to open audit sink: %v", err)
		}
		ctx := context.Background()

		deleted, err := logger.Cleanup(ctx, *retentionDays)
		if err != nil {
			log.Fatalf("Audit cleanup failed: %v", err)
		}
		log.Printf("Deleted %d audit events older than %d days", deleted, *retentionDays)

		store := tenant.NewStore(db)
		if err := store.CleanupExpiredInvitations(ctx); err != nil {
			log.Fatalf("Invitation cleanup failed: %v", err)
		}
		log.Println("Expired invitations deleted")
		return
	}

	if *refreshOnce || *refreshSchedule != "" {
		if *redisURL == "" {
			log.Fatal("--redis-url is required for membership view commands")
		}

		client := redis.NewClient(&redis.Options{Addr: *redisURL})
		defer client.Close()

		view := memberview.New(db, client, memberview.DefaultConfig())

		if *refreshOnce {
			start := time.Now()
			if err := view.Refresh(context.Background()); err != nil {
				log.Fatalf("Membership view refresh failed: %v", err)
			}
			log.Printf("Membership view rebuilt in %s", time.Since(start).Round(time.Millisecond))
			return
		}

		runScheduled(view, *refreshSchedule)
		return
	}

	flag.Usage()
	os.Exit(2)
}

// runScheduled rebuilds the membership view on a cron schedule until
// the process receives SIGINT or SIGTERM.
func runScheduled(view *memberview.View, schedule string) {
	c := cron.New()
	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)

	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, "memberview-refresh")

		start := time.Now()
		if err := view.Refresh(context.Background()); err != nil {
			log.Printf("Membership view refresh failed: %v", err)
			return
		}
		log.Printf("Membership view rebuilt in %s", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		log.Fatalf("Failed to schedule view refresh: %v", err)
	}

	c.Start()
	log.Printf("Membership view refresher started, schedule: %s", schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	ctx := c.Stop()
	<-ctx.Done()
	log.Println("Refresher stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
