// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the storefront's runtime configuration, read from the
// environment (optionally seeded by a .env file).
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Security SecurityConfig
	Logging  LoggingConfig

	Cart           CartConfig
	Inventory      InventoryConfig
	Recommendation RecommendationConfig
	Invoice        InvoiceConfig
	Metrics        MetricsConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// JWTConfig: with RefreshTokenRotation a refresh also issues a new refresh token
type JWTConfig struct {
	Secret               string
	AccessTokenExpiry    time.Duration
	RefreshTokenExpiry   time.Duration
	RefreshTokenRotation bool
}

type SecurityConfig struct {
	BcryptCost         int
	RateLimitPerMinute int
	RateLimitBurst     int
	MaxRequestBodySize int64
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
}

type CartConfig struct {
	SummaryCacheTTL time.Duration
}

// InventoryConfig controls how product stock is derived from inventory rows
type InventoryConfig struct {
	StockIncludesInactive bool
}

type RecommendationConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// InvoiceConfig is the seller block printed on invoices
type InvoiceConfig struct {
	CompanyName    string
	CompanyAddress string
	CompanyPhone   string
	CompanyEmail   string
	Currency       string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// LoggingConfig: File, when set, receives a copy of every entry
type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads .env (if present) and the environment. A variable that is set
// but cannot be parsed is an error, not a silent fallback.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	env := &envReader{}
	cfg := &Config{}

	cfg.App.Name = env.str("APP_NAME", "Storefront API")
	cfg.App.Version = env.str("APP_VERSION", "1.0.0")
	cfg.App.Environment = env.str("APP_ENV", "development")
	cfg.App.Debug = env.boolean("APP_DEBUG", true)

	cfg.Server.Port = env.str("APP_PORT", "8080")
	cfg.Server.ReadTimeout = env.duration("SERVER_READ_TIMEOUT", 30*time.Second)
	cfg.Server.WriteTimeout = env.duration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	cfg.Server.IdleTimeout = env.duration("SERVER_IDLE_TIMEOUT", time.Minute)

	cfg.Database.Host = env.str("DB_HOST", "localhost")
	cfg.Database.Port = env.str("DB_PORT", "5432")
	cfg.Database.Name = env.str("DB_NAME", "storefront")
	cfg.Database.User = env.str("DB_USER", "storefront")
	cfg.Database.Password = env.str("DB_PASSWORD", "storefront")
	cfg.Database.SSLMode = env.str("DB_SSL_MODE", "disable")
	cfg.Database.MaxOpenConns = env.integer("DB_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = env.integer("DB_MAX_IDLE_CONNS", 5)
	cfg.Database.MaxLifetime = env.duration("DB_MAX_LIFETIME", 5*time.Minute)
	cfg.Database.AutoMigrate = env.boolean("DB_AUTO_MIGRATE", true)

	cfg.Redis.Host = env.str("REDIS_HOST", "localhost")
	cfg.Redis.Port = env.str("REDIS_PORT", "6379")
	cfg.Redis.Password = env.str("REDIS_PASSWORD", "")
	cfg.Redis.DB = env.integer("REDIS_DB", 0)
	cfg.Redis.PoolSize = env.integer("REDIS_POOL_SIZE", 10)
	cfg.Redis.MinIdleConns = env.integer("REDIS_MIN_IDLE_CONNS", 5)

	cfg.JWT.Secret = env.str("JWT_SECRET", "")
	cfg.JWT.AccessTokenExpiry = env.duration("JWT_ACCESS_EXPIRE", 24*time.Hour)
	cfg.JWT.RefreshTokenExpiry = env.duration("JWT_REFRESH_EXPIRE", 7*24*time.Hour)
	cfg.JWT.RefreshTokenRotation = env.boolean("JWT_REFRESH_ROTATION", true)

	cfg.Security.BcryptCost = env.integer("BCRYPT_COST", 12)
	cfg.Security.RateLimitPerMinute = env.integer("RATE_LIMIT_PER_MINUTE", 100)
	cfg.Security.RateLimitBurst = env.integer("RATE_LIMIT_BURST", 50)
	cfg.Security.MaxRequestBodySize = int64(env.integer("MAX_REQUEST_BODY_SIZE", 1<<20))
	cfg.Security.CORSAllowedOrigins = env.list("CORS_ALLOWED_ORIGINS", "http://localhost:3000", "http://localhost:3001")
	cfg.Security.CORSAllowedMethods = env.list("CORS_ALLOWED_METHODS", "GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	cfg.Security.CORSAllowedHeaders = env.list("CORS_ALLOWED_HEADERS", "Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID")

	cfg.Logging.Level = env.str("LOG_LEVEL", "debug")
	cfg.Logging.Format = env.str("LOG_FORMAT", "json")
	cfg.Logging.File = env.str("LOG_FILE", "")

	cfg.Cart.SummaryCacheTTL = env.duration("CART_SUMMARY_CACHE_TTL", 15*time.Minute)
	cfg.Inventory.StockIncludesInactive = env.boolean("STOCK_INCLUDES_INACTIVE", true)
	cfg.Recommendation.DefaultLimit = env.integer("RECOMMENDATION_DEFAULT_LIMIT", 6)
	cfg.Recommendation.MaxLimit = env.integer("RECOMMENDATION_MAX_LIMIT", 50)

	cfg.Invoice.CompanyName = env.str("INVOICE_COMPANY_NAME", "Storefront")
	cfg.Invoice.CompanyAddress = env.str("INVOICE_COMPANY_ADDRESS", "")
	cfg.Invoice.CompanyPhone = env.str("INVOICE_COMPANY_PHONE", "")
	cfg.Invoice.CompanyEmail = env.str("INVOICE_COMPANY_EMAIL", "support@example.com")
	cfg.Invoice.Currency = env.str("INVOICE_CURRENCY", "USD")

	cfg.Metrics.Enabled = env.boolean("METRICS_ENABLED", true)
	cfg.Metrics.Path = env.str("METRICS_PATH", "/metrics")

	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadBcryptCost reads only BCRYPT_COST, for tools that hash passwords
// without the rest of the service configuration.
func LoadBcryptCost() (int, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to read .env: %w", err)
	}
	env := &envReader{}
	cost := env.integer("BCRYPT_COST", 12)
	if err := errors.Join(env.errs...); err != nil {
		return 0, fmt.Errorf("invalid environment: %w", err)
	}
	return cost, nil
}

// Validate reports every violated constraint at once
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(len(c.JWT.Secret) >= 32, "JWT_SECRET must be at least 32 characters long")
	check(c.Database.Host != "", "DB_HOST is required")
	check(c.Database.Name != "", "DB_NAME is required")
	check(c.Database.User != "", "DB_USER is required")
	check(c.Redis.Host != "", "REDIS_HOST is required")
	check(c.Server.Port != "", "APP_PORT is required")
	check(c.Recommendation.DefaultLimit > 0, "RECOMMENDATION_DEFAULT_LIMIT must be positive")
	check(c.Recommendation.MaxLimit >= c.Recommendation.DefaultLimit,
		"RECOMMENDATION_MAX_LIMIT must not be below RECOMMENDATION_DEFAULT_LIMIT")

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN renders the postgres keyword/value DSN
func (c *Config) GetDatabaseDSN() string {
	d := c.Database
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// envReader reads typed variables and collects parse failures
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envReader) list(key string, def ...string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
