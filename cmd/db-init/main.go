// Command db-init applies the order store schema to a fresh database. The
// server also migrates at startup; this tool exists for environments where
// the schema is provisioned before the first deploy.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/kiseto/order-intake/internal/storage/postgres"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("db init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("db init completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Sanity check: the orders table must be queryable after migration.
	repo := postgres.NewOrderRepository(pool)
	rows, err := repo.ListSince(ctx, time.Now())
	if err != nil {
		return errors.Wrap(err, "verify orders table")
	}
	slog.Info("schema verified", slog.Int("recent_orders", len(rows)))

	return nil
}
