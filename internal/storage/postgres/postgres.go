// Package postgres stores cart documents in PostgreSQL.
package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/db"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Storage = (*CartRepository)(nil)

// NewPool creates a pgxpool.Pool from a connection URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}
	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

// CartRepository implements cart.Storage on the cart_sessions table.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const (
	loadCartSQL = `SELECT document FROM cart_sessions WHERE key = $1`
	saveCartSQL = `
INSERT INTO cart_sessions (key, document, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE
SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	purgeCartsSQL = `DELETE FROM cart_sessions WHERE updated_at < now() - make_interval(secs => $1)`
)

// Load returns cart.ErrNoDocument when no row exists for key.
func (r *CartRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, loadCartSQL, key).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cart.ErrNoDocument
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load cart %q", key)
	}
	return doc, nil
}

// Save upserts the document for key.
func (r *CartRepository) Save(ctx context.Context, key string, doc []byte) error {
	if _, err := r.pool.Exec(ctx, saveCartSQL, key, string(doc)); err != nil {
		return errors.Wrapf(err, "save cart %q", key)
	}
	return nil
}

// PurgeIdle deletes carts untouched for longer than maxAgeSeconds and
// returns how many were removed.
func (r *CartRepository) PurgeIdle(ctx context.Context, maxAgeSeconds float64) (int64, error) {
	tag, err := r.pool.Exec(ctx, purgeCartsSQL, maxAgeSeconds)
	if err != nil {
		return 0, errors.Wrap(err, "purge idle carts")
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
