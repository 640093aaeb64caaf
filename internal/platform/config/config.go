package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	pkgstrings "tiptap/pkg/platform/strings"
)

// DefaultCategoryCodes are the product category prefixes recognised by the
// identifier grammar when CATEGORY_CODES is not set.
var DefaultCategoryCodes = []string{"FOOD", "ELEC", "CLTH", "BOOK", "HOME", "SPRT"}

// Config is the complete process configuration. Field tags name the bare
// environment variable; envconfig also accepts the section-prefixed form
// (e.g. SERVER_PORT).
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Catalog   CatalogConfig
	Checkout  CheckoutConfig
	Scan      ScanConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Port              int           `envconfig:"PORT" default:"5000"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"45s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"90s"`
}

// Addr returns the listen address for the HTTP server.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DatabaseConfig selects the product/order store. An empty URL keeps both in memory.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig configures the optional Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	ProductTTL   time.Duration `envconfig:"REDIS_PRODUCT_TTL" default:"5m"`
}

// KafkaConfig configures order event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers       []string      `envconfig:"KAFKA_BROKERS"`
	OrderTopic    string        `envconfig:"ORDER_EVENTS_TOPIC" default:"tiptap.orders"`
	ClientID      string        `envconfig:"KAFKA_CLIENT_ID" default:"tiptap-server"`
	BufferSize    int           `envconfig:"ORDER_EVENTS_BUFFER" default:"1024"`
	FlushInterval time.Duration `envconfig:"ORDER_EVENTS_FLUSH_INTERVAL" default:"500ms"`
}

// CatalogConfig configures the identifier grammar and the remote catalog client.
type CatalogConfig struct {
	CategoryCodes []string      `envconfig:"CATEGORY_CODES"`
	APIBaseURL    string        `envconfig:"API_BASE_URL" default:"http://localhost:5000/api"`
	LookupTimeout time.Duration `envconfig:"CATALOG_LOOKUP_TIMEOUT" default:"5s"`
	// RefreshInterval is how often the kiosk copies the live catalog into
	// its offline table.
	RefreshInterval time.Duration `envconfig:"CATALOG_REFRESH_INTERVAL" default:"5m"`
}

// CheckoutConfig configures pricing and payment.
type CheckoutConfig struct {
	TaxRate      decimal.Decimal `envconfig:"TAX_RATE" default:"0.18"`
	Currency     string          `envconfig:"CURRENCY" default:"INR"`
	UPIPayee     string          `envconfig:"UPI_PAYEE" default:"merchant@upi"`
	UPIPayeeName string          `envconfig:"UPI_PAYEE_NAME" default:"pay"`
	MockDelay    time.Duration   `envconfig:"MOCK_PAYMENT_DELAY" default:"2s"`
}

// ScanConfig configures scan-session timing.
type ScanConfig struct {
	DedupWindow     time.Duration `envconfig:"SCAN_DEDUP_WINDOW" default:"2s"`
	DisplayInterval time.Duration `envconfig:"SCAN_DISPLAY_INTERVAL" default:"3s"`
	QRCooldown      time.Duration `envconfig:"QR_COOLDOWN" default:"2s"`
}

// RateLimitConfig sets per-client-IP budgets for the API. With Redis
// configured the windows are shared between server instances.
type RateLimitConfig struct {
	Disabled      bool          `envconfig:"RATE_LIMIT_DISABLED" default:"false"`
	ReadRequests  int           `envconfig:"RATE_LIMIT_READ" default:"300"`
	WriteRequests int           `envconfig:"RATE_LIMIT_WRITE" default:"60"`
	Window        time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// LogConfig selects log level and output format ("json" or "text").
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Kafka.Brokers = pkgstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	cfg.Catalog.CategoryCodes = pkgstrings.DedupeAndTrimUpper(cfg.Catalog.CategoryCodes)
	if len(cfg.Catalog.CategoryCodes) == 0 {
		cfg.Catalog.CategoryCodes = append([]string(nil), DefaultCategoryCodes...)
	}
	if cfg.Checkout.TaxRate.IsNegative() {
		return Config{}, fmt.Errorf("load config: TAX_RATE must not be negative")
	}
	return cfg, nil
}
