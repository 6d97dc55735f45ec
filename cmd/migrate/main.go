package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/market/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	defaultTenants = "shop1"
)

func main() {
	_ = godotenv.Load()

	var (
		direction string
		steps     int
		dsn       string
		tenants   string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: POSTGRES_DSN)")
	flag.StringVar(&tenants, "tenants", "", "comma-separated tenant ids (fallback: TENANTS)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("POSTGRES_DSN (or -dsn) is required")
	}

	if strings.TrimSpace(tenants) == "" {
		tenants = strings.TrimSpace(os.Getenv("TENANTS"))
	}
	if tenants == "" {
		tenants = defaultTenants
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.NewStore(dsn, splitCSV(tenants))
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer func() { _ = store.Teardown() }()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			fail("migrate up failed: %v", err)
		}
		fmt.Println("migrate up ok")
		printStatus(ctx, store)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			fail("migrate down failed: %v", err)
		}
		fmt.Println("migrate down ok")
		printStatus(ctx, store)
	case "status":
		printStatus(ctx, store)
	default:
		fail("unsupported direction: %s (use up|down|status)", direction)
	}
}

// printStatus печатает версию и число применённых миграций по каждой схеме.
func printStatus(ctx context.Context, store *postgres.Store) {
	statuses, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	for _, s := range statuses {
		fmt.Printf("schema=%s version=%d applied=%d\n", s.Schema, s.Version, s.Applied)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
