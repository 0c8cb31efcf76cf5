package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/backend"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/payment"
	"github.com/xenking/kart-storefront/internal/events"
	"github.com/xenking/kart-storefront/internal/httpapi"
	"github.com/xenking/kart-storefront/internal/storage/file"
	"github.com/xenking/kart-storefront/internal/storage/memory"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/storage/redis"
	"github.com/xenking/kart-storefront/pkg/health"
	"github.com/xenking/kart-storefront/pkg/httpmiddleware"
)

// cartStorage is a cart document store that can report its health.
type cartStorage interface {
	cart.Storage
	health.Pinger
}

// storage is an opened cart store plus its background maintenance.
type storage struct {
	cartStorage
	close func()
	// maintain runs until ctx is done. Nil when the driver needs none.
	maintain func(ctx context.Context) error
}

// openStorage connects the configured driver.
func openStorage(ctx context.Context, cfg StorageConfig) (*storage, error) {
	switch cfg.Driver {
	case DriverMemory:
		return &storage{cartStorage: memory.New(), close: func() {}}, nil

	case DriverFile:
		s, err := file.New(cfg.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "open file storage")
		}
		return &storage{cartStorage: s, close: func() {}}, nil

	case DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		s := redis.New(client, redis.Config{TTL: cfg.TTL, Jitter: cfg.Jitter})
		return &storage{cartStorage: s, close: func() { _ = client.Close() }}, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		repo := postgres.NewCartRepository(pool)
		return &storage{
			cartStorage: repo,
			close:       pool.Close,
			maintain: func(ctx context.Context) error {
				purgeIdle(ctx, repo, cfg.TTL, cfg.PurgeInterval)
				return nil
			},
		}, nil

	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// purgeIdle deletes carts untouched for ttl every interval. Redis expires
// keys by itself; postgres needs this sweep.
func purgeIdle(ctx context.Context, repo *postgres.CartRepository, ttl, interval time.Duration) {
	lg := zctx.From(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeIdle(ctx, ttl.Seconds())
			if err != nil {
				lg.Warn("Purge idle carts", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("Purged idle carts", zap.Int64("count", n))
			}
		}
	}
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("backend", cfg.Backend.BaseURL),
	)
	ctx = zctx.Base(ctx, lg)

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.close()

	client, err := backend.New(
		backend.Config{BaseURL: cfg.Backend.BaseURL, Timeout: cfg.Backend.Timeout},
		backend.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create backend client")
	}

	// Checkout events. The producer outlives ctx so events published while
	// draining are still flushed.
	var (
		publisher events.Publisher = events.Nop{}
		producer  *events.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Buffer:  cfg.Kafka.Buffer,
		})
		publisher = producer
	}

	poller := payment.NewPoller(client,
		payment.WithInterval(cfg.Payment.PollInterval),
		payment.WithMaxAttempts(cfg.Payment.MaxAttempts),
		payment.WithDeadline(cfg.Payment.Deadline),
	)
	checkoutSvc, err := checkout.NewService(client, client, poller,
		checkout.Config{
			OrderTimeout:   cfg.Checkout.OrderTimeout,
			PaymentRegions: cfg.Checkout.PaymentRegions,
		},
		m.MeterProvider(),
		checkout.WithEvents(publisher),
		checkout.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// Health checks.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadiness(health.Check{Name: "storage", Timeout: 5 * time.Second, Func: health.PingCheck(store)})
	healthSvc.AddReadiness(health.Check{Name: "backend", Timeout: 5 * time.Second, Func: health.PingCheck(client)})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Func: health.GoroutineCountCheck(10000)})

	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
		KeyFunc: func(r *http.Request) string {
			if id, ok := httpapi.SessionKey(r); ok {
				return "session:" + id
			}
			return "ip:" + httpmiddleware.ClientIP(r)
		},
	})

	api := httpapi.New(
		httpapi.Config{SessionTTL: cfg.Session.CookieTTL, SecureCookie: cfg.Session.SecureCookie},
		client, store, checkoutSvc,
		httpapi.WithCheckoutMiddleware(limiter.Middleware()),
	)
	routeFinder := api.RouteFinder()

	mux := http.NewServeMux()
	mux.Handle("/livez", healthSvc.LiveHandler())
	mux.Handle("/readyz", healthSvc.ReadyHandler())
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Payment confirmation holds the request until polling settles.
		WriteTimeout:   cfg.Payment.writeTimeout(),
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpapi.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpapi.SessionHeader, httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.Instrument("storefront-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		limiter.RunEviction(gctx)
		return nil
	})
	if store.maintain != nil {
		g.Go(func() error {
			return store.maintain(gctx)
		})
	}
	if producer != nil {
		g.Go(func() error {
			return producer.Run(context.WithoutCancel(gctx))
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if producer != nil {
			if err := producer.Close(shutdownCtx); err != nil {
				lg.Error("Flush checkout events", zap.Error(err))
			}
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
