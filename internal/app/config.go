package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage   StorageConfig
	Backend   BackendConfig
	Checkout  CheckoutConfig
	Payment   PaymentConfig
	Kafka     KafkaConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the cart document store.
type StorageConfig struct {
	Driver        string        `default:"memory" usage:"Cart storage driver: memory, file, redis or postgres"`
	Dir           string        `default:"./data/carts" usage:"Directory of the file driver"`
	RedisAddr     string        `default:"localhost:6379" usage:"Redis address" flag:"redis-addr"`
	RedisPassword string        `default:"" usage:"Redis password" flag:"redis-password"`
	RedisDB       int           `default:"0" usage:"Redis database" flag:"redis-db"`
	DatabaseURL   string        `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TTL           time.Duration `default:"168h" usage:"Lifetime of an untouched cart"`
	Jitter        time.Duration `default:"1h" usage:"Random extra cart lifetime in redis"`
	PurgeInterval time.Duration `default:"1h" usage:"How often postgres purges idle carts" flag:"purge-interval"`
}

// BackendConfig points at the commerce backend REST API.
type BackendConfig struct {
	BaseURL string        `usage:"Backend API base URL, e.g. https://api.example.com/api" flag:"backend-url"`
	Timeout time.Duration `default:"30s" usage:"Backend HTTP client timeout"`
}

// CheckoutConfig controls order placement.
type CheckoutConfig struct {
	OrderTimeout   time.Duration `default:"15s" usage:"Time budget of order creation" flag:"order-timeout"`
	PaymentRegions []string      `default:"Kenya,KE" usage:"Countries where mobile money is offered" flag:"payment-regions"`
}

// PaymentConfig controls mobile money confirmation polling.
type PaymentConfig struct {
	PollInterval time.Duration `default:"3s" usage:"Delay between payment status checks" flag:"poll-interval"`
	MaxAttempts  int           `default:"20" usage:"Payment status checks before giving up" flag:"poll-attempts"`
	Deadline     time.Duration `default:"70s" usage:"Overall payment confirmation deadline" flag:"poll-deadline"`
}

// KafkaConfig enables checkout events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty disables events"`
	Topic   string   `default:"storefront.checkout" usage:"Checkout events topic"`
	Buffer  int      `default:"256" usage:"Events buffered in memory"`
}

// SessionConfig controls the cart session cookie.
type SessionConfig struct {
	CookieTTL    time.Duration `default:"168h" usage:"Cart session cookie lifetime" flag:"session-ttl"`
	SecureCookie bool          `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
}

// RateLimitConfig controls the per-session limiter on checkout and payment
// confirmation.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Max checkout requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then configuration from environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	return loadConfig(aconfig.Config{
		Files: []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	acfg.EnvPrefix = "STOREFRONT"
	acfg.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.Storage.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend URL is required: set STOREFRONT_BACKEND_BASE_URL")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis:
	case DriverFile:
		if c.Storage.Dir == "" {
			return errors.New("file storage requires a directory")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required for postgres storage: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
		if c.Storage.PurgeInterval <= 0 {
			return errors.Errorf("postgres purge interval must be positive, got %s", c.Storage.PurgeInterval)
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Payment.MaxAttempts < 1 {
		return errors.Errorf("payment max attempts must be positive, got %d", c.Payment.MaxAttempts)
	}
	return nil
}

// writeTimeout bounds a checkout response: confirmation polls until the
// deadline or until attempts run out, whichever comes first. A zero deadline
// leaves only the attempt budget.
func (p PaymentConfig) writeTimeout() time.Duration {
	budget := p.PollInterval * time.Duration(p.MaxAttempts)
	if p.Deadline > 0 && p.Deadline < budget {
		budget = p.Deadline
	}
	return budget + 15*time.Second
}
