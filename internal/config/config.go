// Package config provides centralized configuration management for the country
// snapshot service. Settings come from environment variables with defaults and
// are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Providers ProviderConfig
	Refresh   RefreshConfig
	Cache     CacheConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on. PORT is honoured for platform deployments.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds ordinary read requests. Refresh has its own budget.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// MigrateOnStart applies embedded schema migrations before serving.
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" default:"true"`
}

// ProviderConfig points at the two upstream data sources.
type ProviderConfig struct {
	CountriesURL string        `env:"COUNTRIES_API_URL" default:"https://restcountries.com/v2/all?fields=name,capital,region,population,flag,currencies"`
	RatesURL     string        `env:"RATES_API_URL" default:"https://open.er-api.com/v6/latest/USD"`
	Timeout      time.Duration `env:"PROVIDER_TIMEOUT" default:"10s"`
	UserAgent    string        `env:"PROVIDER_USER_AGENT" default:"country-snapshot/1.0"`
}

// RefreshConfig controls reconciliation cycles.
type RefreshConfig struct {
	// MaxWait is how long a refresh waits for a running one to finish.
	MaxWait time.Duration `env:"REFRESH_MAX_WAIT" default:"30s"`

	// Timeout bounds one whole cycle, provider calls included.
	Timeout time.Duration `env:"REFRESH_TIMEOUT" default:"5m"`

	// Interval schedules background refreshes; 0 disables the scheduler.
	Interval time.Duration `env:"REFRESH_INTERVAL" default:"0s"`

	// FactorMin and FactorMax bound the sampled per-capita output used by
	// the GDP estimate.
	FactorMin float64 `env:"GDP_FACTOR_MIN" default:"1000"`
	FactorMax float64 `env:"GDP_FACTOR_MAX" default:"2000"`
}

// CacheConfig holds exchange-rate cache settings.
type CacheConfig struct {
	// RedisURL enables the shared Redis rates cache when set; otherwise an
	// in-process cache is used.
	RedisURL string `env:"REDIS_URL"`

	RatesTTL time.Duration `env:"RATES_CACHE_TTL" default:"5m"`
}

// RateLimitConfig holds per-IP request throttling settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`
	RefreshPerMinute  int  `env:"RATE_LIMIT_REFRESH" default:"6"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
