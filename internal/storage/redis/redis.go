// Package redis stores cart documents in Redis with a sliding expiry.
package redis

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Storage = (*Storage)(nil)

// Config controls key expiry.
type Config struct {
	// TTL is the base lifetime of an untouched cart.
	TTL time.Duration
	// Jitter is the upper bound of a random extra lifetime, spreading
	// expirations of carts saved together.
	Jitter time.Duration
}

// Storage keeps each cart under cart:{key}. Every save refreshes the TTL.
type Storage struct {
	client goredis.UniversalClient
	cfg    Config
}

// New returns a Storage using client.
func New(client goredis.UniversalClient, cfg Config) *Storage {
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Storage{client: client, cfg: cfg}
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	doc, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, cart.ErrNoDocument
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return doc, nil
}

func (s *Storage) Save(ctx context.Context, key string, doc []byte) error {
	if err := s.client.Set(ctx, redisKey(key), doc, s.ttl()).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Ping checks connectivity to the server.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Storage) ttl() time.Duration {
	if s.cfg.Jitter <= 0 {
		return s.cfg.TTL
	}
	return s.cfg.TTL + rand.N(s.cfg.Jitter)
}

func redisKey(key string) string {
	return "cart:" + key
}
