//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

func setupRepository(t *testing.T) *CartRepository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	return NewCartRepository(pool)
}

func TestCartRepository(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, "missing")
	require.ErrorIs(t, err, cart.ErrNoDocument)

	store, err := cart.Open(ctx, repo, "s1")
	require.NoError(t, err)
	require.NoError(t, store.AddItem(ctx, product.Product{
		ID:    "p1",
		Name:  "Sisal basket",
		Price: decimal.RequireFromString("1200"),
		Stock: 3,
	}, 2))
	require.NoError(t, store.UpdateQuantity(ctx, "p1", 3))

	reopened, err := cart.Open(ctx, repo, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Quantity("p1"))
	assert.True(t, decimal.RequireFromString("3600").Equal(reopened.Totals().Total))

	require.NoError(t, repo.Ping(ctx))
}

func TestCartRepository_PurgeIdle(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "old", cart.EncodeDocument(nil)))
	_, err := repo.pool.Exec(ctx, `UPDATE cart_sessions SET updated_at = now() - interval '2 days' WHERE key = 'old'`)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "fresh", cart.EncodeDocument(nil)))

	n, err := repo.PurgeIdle(ctx, (24 * time.Hour).Seconds())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.Load(ctx, "old")
	require.ErrorIs(t, err, cart.ErrNoDocument)
	_, err = repo.Load(ctx, "fresh")
	require.NoError(t, err)
}
