// Command cart-purge deletes carts stored in PostgreSQL that have not been
// touched for a while. It is meant to run from cron when the API servers are
// not configured to purge by themselves.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		maxIdle     time.Duration
		migrate     bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.DurationVar(&maxIdle, "max-idle", 7*24*time.Hour, "delete carts untouched for longer than this")
	flag.BoolVar(&migrate, "migrate", false, "apply the schema before purging")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if maxIdle <= 0 {
		lg.Fatal("max idle must be positive", zap.Duration("max_idle", maxIdle))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	n, err := run(ctx, lg, databaseURL, maxIdle, migrate)
	if err != nil {
		lg.Fatal("Purge failed", zap.Error(err))
	}
	lg.Info("Purge completed", zap.Int64("deleted", n), zap.Duration("max_idle", maxIdle))
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, maxIdle time.Duration, migrate bool) (int64, error) {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if migrate {
		lg.Info("Running migrations")
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return 0, errors.Wrap(err, "run migrations")
		}
	}

	n, err := postgres.NewCartRepository(pool).PurgeIdle(ctx, maxIdle.Seconds())
	if err != nil {
		return 0, errors.Wrap(err, "purge idle carts")
	}
	return n, nil
}
