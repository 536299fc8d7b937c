package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"order_engine/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting.
// LoadConfig fills defaults, then lets environment variables override the file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr      string `yaml:"addr"`
		PprofAddr string `yaml:"pprof_addr"` // empty disables pprof
	} `yaml:"server"`

	Database DatabaseConfig `yaml:"database"`

	Queue QueueConfig `yaml:"queue"`

	Router struct {
		QuoteTimeoutMS int `yaml:"quote_timeout_ms"` // 0 = unbounded
		SwapTimeoutMS  int `yaml:"swap_timeout_ms"`  // 0 = unbounded
	} `yaml:"router"`

	Venues []VenueConfig `yaml:"venues"`

	Websocket struct {
		SendBuffer     int `yaml:"send_buffer"`
		WriteTimeoutMS int `yaml:"write_timeout_ms"`
	} `yaml:"websocket"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DatabaseConfig selects the order store backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite, postgres
	Path         string `yaml:"path"`   // sqlite file
	DSN          string `yaml:"dsn"`    // postgres connection string
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// QueueConfig controls the work queue and the worker pool draining it.
type QueueConfig struct {
	Backend     string `yaml:"backend"` // memory, redis
	Name        string `yaml:"name"`
	RedisURL    string `yaml:"redis_url"`
	Concurrency int    `yaml:"concurrency"`
	Attempts    int    `yaml:"attempts"`
	Backoff     struct {
		Type    string `yaml:"type"` // exponential, fixed
		DelayMS int    `yaml:"delay_ms"`
	} `yaml:"backoff"`

	// SuppressIntermediateFailures persists a failed attempt that will be
	// retried without broadcasting it.
	SuppressIntermediateFailures bool `yaml:"suppress_intermediate_failures"`
	// RetryNotFound keeps retrying jobs whose order id does not exist.
	RetryNotFound *bool `yaml:"retry_not_found"`
}

// RetriesNotFound reports the effective retry_not_found policy (default true).
func (q QueueConfig) RetriesNotFound() bool {
	return q.RetryNotFound == nil || *q.RetryNotFound
}

// VenueConfig describes one simulated venue.
type VenueConfig struct {
	Name        string  `yaml:"name"`
	BasePrice   float64 `yaml:"base_price"`
	PriceFloor  float64 `yaml:"price_floor"`  // multiplier lower bound
	PriceSpread float64 `yaml:"price_spread"` // multiplier range width
	Fee         float64 `yaml:"fee"`
	FailureRate float64 `yaml:"failure_rate"`

	QuoteLatency LatencyConfig `yaml:"quote_latency_ms"`
	BuildLatency LatencyConfig `yaml:"build_latency_ms"`
	SwapLatency  LatencyConfig `yaml:"swap_latency_ms"`

	ExecPriceFloor  float64 `yaml:"exec_price_floor"`
	ExecPriceSpread float64 `yaml:"exec_price_spread"`
}

// LatencyConfig is a uniform [Min, Max] millisecond range.
type LatencyConfig struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the settings used when the file leaves a value out.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "order-engine"
	cfg.Server.Addr = ":3000"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "data/orders.db"
	cfg.Queue.Backend = "memory"
	cfg.Queue.Name = "order-queue"
	cfg.Queue.Concurrency = 10
	cfg.Queue.Attempts = 3
	cfg.Queue.Backoff.Type = "exponential"
	cfg.Queue.Backoff.DelayMS = 500
	cfg.Websocket.SendBuffer = 64
	cfg.Websocket.WriteTimeoutMS = 5000
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return cfg
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return &domain.ConfigError{Field: "database.path", Err: fmt.Errorf("required for sqlite")}
		}
	case "postgres":
	default:
		return &domain.ConfigError{Field: "database.driver", Err: fmt.Errorf("unsupported driver %q", c.Database.Driver)}
	}

	switch c.Queue.Backend {
	case "memory":
	case "redis":
		if c.Queue.RedisURL == "" {
			return &domain.ConfigError{Field: "queue.redis_url", Err: fmt.Errorf("required for redis backend")}
		}
	default:
		return &domain.ConfigError{Field: "queue.backend", Err: fmt.Errorf("unsupported backend %q", c.Queue.Backend)}
	}

	if c.Queue.Concurrency <= 0 {
		return &domain.ConfigError{Field: "queue.concurrency", Err: fmt.Errorf("must be positive")}
	}
	if c.Queue.Attempts <= 0 {
		return &domain.ConfigError{Field: "queue.attempts", Err: fmt.Errorf("must be positive")}
	}
	if t := c.Queue.Backoff.Type; t != "exponential" && t != "fixed" {
		return &domain.ConfigError{Field: "queue.backoff.type", Err: fmt.Errorf("unsupported type %q", t)}
	}
	if c.Queue.Backoff.DelayMS < 0 {
		return &domain.ConfigError{Field: "queue.backoff.delay_ms", Err: fmt.Errorf("must not be negative")}
	}

	if len(c.Venues) == 0 {
		return &domain.ConfigError{Field: "venues", Err: fmt.Errorf("at least one venue is required")}
	}
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		field := fmt.Sprintf("venues[%d]", i)
		if v.Name == "" {
			return &domain.ConfigError{Field: field + ".name", Err: fmt.Errorf("required")}
		}
		if seen[v.Name] {
			return &domain.ConfigError{Field: field + ".name", Err: fmt.Errorf("duplicate venue %q", v.Name)}
		}
		seen[v.Name] = true
		if v.BasePrice <= 0 {
			return &domain.ConfigError{Field: field + ".base_price", Err: fmt.Errorf("must be positive")}
		}
		if v.FailureRate < 0 || v.FailureRate > 1 {
			return &domain.ConfigError{Field: field + ".failure_rate", Err: fmt.Errorf("must be within [0, 1]")}
		}
	}

	return nil
}

// overrideWithEnv overwrites settings with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = dsn
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Queue.Backend = "redis"
		cfg.Queue.RedisURL = url
	}
	if n, err := strconv.Atoi(os.Getenv("QUEUE_CONCURRENCY")); err == nil && n > 0 {
		cfg.Queue.Concurrency = n
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
