package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Analytics AnalyticsConfig
	Breaker   BreakerConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the record store: a DSN (postgres://, mysql://,
// mariadb://) takes precedence over the CSV files.
type DatabaseConfig struct {
	DSN              string
	OrdersCSV        string
	SubscriptionsCSV string
	PlansCSV         string
	TransitionsCSV   string
}

type CacheConfig struct {
	Enabled  bool
	RedisURL string
	TTL      time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type AnalyticsConfig struct {
	ForecastHorizon int
	SnapshotTimeout time.Duration
	DefaultShop     string
}

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Load reads an optional YAML file and then the environment; environment
// variables win. path may be empty.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	src := source{k: k}

	cfg := &Config{
		Server: ServerConfig{
			Host:            src.String("SERVER_HOST", "server.host", "localhost"),
			Port:            src.Int("SERVER_PORT", "server.port", 8084),
			ReadTimeout:     src.Duration("SERVER_READ_TIMEOUT", "server.read_timeout", 10*time.Second),
			WriteTimeout:    src.Duration("SERVER_WRITE_TIMEOUT", "server.write_timeout", 30*time.Second),
			IdleTimeout:     src.Duration("SERVER_IDLE_TIMEOUT", "server.idle_timeout", 60*time.Second),
			ShutdownTimeout: src.Duration("SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout", 30*time.Second),
		},
		Database: DatabaseConfig{
			DSN:              src.String("DATABASE_URL", "database.dsn", ""),
			OrdersCSV:        src.String("ORDERS_CSV", "database.orders_csv", "data/orders.csv"),
			SubscriptionsCSV: src.String("SUBSCRIPTIONS_CSV", "database.subscriptions_csv", "data/subscriptions.csv"),
			PlansCSV:         src.String("PLANS_CSV", "database.plans_csv", "data/plans.csv"),
			TransitionsCSV:   src.String("TRANSITIONS_CSV", "database.transitions_csv", ""),
		},
		Cache: CacheConfig{
			Enabled:  src.Bool("CACHE_ENABLED", "cache.enabled", false),
			RedisURL: src.String("REDIS_URL", "cache.redis_url", "redis://localhost:6379/0"),
			TTL:      src.Duration("CACHE_TTL", "cache.ttl", 10*time.Minute),
		},
		Logger: LoggerConfig{
			Level:  src.String("LOG_LEVEL", "logger.level", "info"),
			Format: src.String("LOG_FORMAT", "logger.format", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: src.Bool("SECURITY_RATE_LIMIT_ENABLED", "security.rate_limit_enabled", true),
			RateLimitRPS:    src.Int("SECURITY_RATE_LIMIT_RPS", "security.rate_limit_rps", 50),
			RateLimitBurst:  src.Int("SECURITY_RATE_LIMIT_BURST", "security.rate_limit_burst", 10),
			AllowedOrigins:  src.Strings("SECURITY_ALLOWED_ORIGINS", "security.allowed_origins", []string{"http://localhost:8084"}),
			TrustedProxies:  src.Strings("SECURITY_TRUSTED_PROXIES", "security.trusted_proxies", []string{"127.0.0.1"}),
		},
		Analytics: AnalyticsConfig{
			ForecastHorizon: src.Int("FORECAST_HORIZON", "analytics.forecast_horizon", 3),
			SnapshotTimeout: src.Duration("SNAPSHOT_TIMEOUT", "analytics.snapshot_timeout", 15*time.Second),
			DefaultShop:     src.String("DEFAULT_SHOP", "analytics.default_shop", ""),
		},
		Breaker: BreakerConfig{
			MaxFailures: uint32(src.Int("BREAKER_MAX_FAILURES", "breaker.max_failures", 5)),
			OpenTimeout: src.Duration("BREAKER_OPEN_TIMEOUT", "breaker.open_timeout", 30*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}

	if c.Database.DSN == "" && c.Database.OrdersCSV == "" {
		return fmt.Errorf("either DATABASE_URL or ORDERS_CSV must be set")
	}

	if c.Cache.Enabled && c.Cache.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when the cache is enabled")
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 || c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit RPS and burst must be positive")
	}

	if c.Analytics.ForecastHorizon < 1 || c.Analytics.ForecastHorizon > 24 {
		return fmt.Errorf("forecast horizon must be between 1 and 24, got %d", c.Analytics.ForecastHorizon)
	}

	if c.Analytics.SnapshotTimeout <= 0 {
		return fmt.Errorf("snapshot timeout must be positive")
	}

	if c.Breaker.MaxFailures == 0 {
		return fmt.Errorf("breaker max failures must be positive")
	}

	return nil
}

// source resolves a setting from the environment first, then the config
// file, then the default.
type source struct {
	k *koanf.Koanf
}

func (s source) raw(env, path string) (string, bool) {
	if value := os.Getenv(env); value != "" {
		return value, true
	}
	if s.k.Exists(path) {
		return s.k.String(path), true
	}
	return "", false
}

func (s source) String(env, path, defaultValue string) string {
	if value, ok := s.raw(env, path); ok {
		return value
	}
	return defaultValue
}

func (s source) Int(env, path string, defaultValue int) int {
	if value, ok := s.raw(env, path); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s source) Bool(env, path string, defaultValue bool) bool {
	if value, ok := s.raw(env, path); ok {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (s source) Duration(env, path string, defaultValue time.Duration) time.Duration {
	if value, ok := s.raw(env, path); ok {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (s source) Strings(env, path string, defaultValue []string) []string {
	if value := os.Getenv(env); value != "" {
		return strings.Split(value, ",")
	}
	if s.k.Exists(path) {
		return s.k.Strings(path)
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
