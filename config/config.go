package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Cursor      CursorConfig      `mapstructure:"cursor"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Risk        RiskConfig        `mapstructure:"risk"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Events      EventsConfig      `mapstructure:"events"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig carries the argon2id-encoded API key hashes accepted for
// bearer authentication.
type AuthConfig struct {
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
}

type RateLimitConfig struct {
	WindowSeconds int  `mapstructure:"window_seconds"`
	MaxRequests   int  `mapstructure:"max_requests"`
	Distributed   bool `mapstructure:"distributed"`
}

// Window returns the refill window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type IdempotencyConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	KeyMaxLength int           `mapstructure:"key_max_length"`
	Distributed  bool          `mapstructure:"distributed"`
}

type CursorConfig struct {
	// Secrets is the rotation list: the first entry signs new cursors,
	// every entry verifies.
	Secrets []string `mapstructure:"secrets"`
}

type ProvidersConfig struct {
	Default    string              `mapstructure:"default"`
	Priorities map[string][]string `mapstructure:"priorities"` // method -> ordered provider names
	Breaker    BreakerConfig       `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Threshold int           `mapstructure:"threshold"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
}

type RiskConfig struct {
	BlockedCustomers []string `mapstructure:"blocked_customers"`
	ReviewAmount     int64    `mapstructure:"review_amount"` // 0 disables the threshold
}

type WebhookConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	// Mode selects the bus: "memory" (synchronous fan-out) or "durable"
	// (postgres outbox + redis stream + inbox dedup).
	Mode          string        `mapstructure:"mode"`
	Stream        string        `mapstructure:"stream"`
	ConsumerGroup string        `mapstructure:"consumer_group"`
	BatchSize     int           `mapstructure:"batch_size"`
	BlockTimeout  time.Duration `mapstructure:"block_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PMC_.
// Nested keys use underscore: PMC_DATABASE_HOST, PMC_WEBHOOK_MAX_ATTEMPTS.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "pmc")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.api_key_hashes", []string{})
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.distributed", false)
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("idempotency.key_max_length", 255)
	v.SetDefault("idempotency.distributed", false)
	v.SetDefault("cursor.secrets", []string{})
	v.SetDefault("providers.default", "provider_a")
	v.SetDefault("providers.breaker.threshold", 3)
	v.SetDefault("providers.breaker.cooldown", "30s")
	v.SetDefault("risk.blocked_customers", []string{})
	v.SetDefault("risk.review_amount", 0)
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.timeout", "5s")
	v.SetDefault("events.mode", "memory")
	v.SetDefault("events.stream", "pmc:events")
	v.SetDefault("events.consumer_group", "pmc-dispatch")
	v.SetDefault("events.batch_size", 32)
	v.SetDefault("events.block_timeout", "2s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PMC_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PMC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would break contract guarantees.
// Invalid configuration fails startup, not the first request.
func (c *Config) Validate() error {
	if c.RateLimit.WindowSeconds < 1 {
		return fmt.Errorf("invalid_runtime_config: rate_limit.window_seconds must be >= 1, got %d", c.RateLimit.WindowSeconds)
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("invalid_runtime_config: rate_limit.max_requests must be >= 1, got %d", c.RateLimit.MaxRequests)
	}
	if c.Idempotency.KeyMaxLength < 128 {
		return fmt.Errorf("invalid_runtime_config: idempotency.key_max_length must be >= 128, got %d", c.Idempotency.KeyMaxLength)
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("invalid_runtime_config: idempotency.ttl must be positive")
	}
	if len(c.Cursor.Secrets) == 0 {
		return fmt.Errorf("invalid_runtime_config: cursor.secrets requires at least one signing secret")
	}
	for i, s := range c.Cursor.Secrets {
		if s == "" {
			return fmt.Errorf("invalid_runtime_config: cursor.secrets[%d] is empty", i)
		}
	}
	if c.Providers.Default == "" {
		return fmt.Errorf("invalid_runtime_config: providers.default is required")
	}
	if c.Providers.Breaker.Threshold < 1 {
		return fmt.Errorf("invalid_runtime_config: providers.breaker.threshold must be >= 1, got %d", c.Providers.Breaker.Threshold)
	}
	if c.Providers.Breaker.Cooldown <= 0 {
		return fmt.Errorf("invalid_runtime_config: providers.breaker.cooldown must be positive")
	}
	if c.Webhook.MaxAttempts < 1 {
		return fmt.Errorf("invalid_runtime_config: webhook.max_attempts must be >= 1, got %d", c.Webhook.MaxAttempts)
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("invalid_runtime_config: webhook.timeout must be positive")
	}
	switch c.Events.Mode {
	case "memory", "durable":
	default:
		return fmt.Errorf("invalid_runtime_config: events.mode must be memory or durable, got %q", c.Events.Mode)
	}
	if c.Events.Mode == "durable" {
		if c.Events.Stream == "" || c.Events.ConsumerGroup == "" {
			return fmt.Errorf("invalid_runtime_config: events.stream and events.consumer_group are required in durable mode")
		}
		if c.Events.BatchSize < 1 {
			return fmt.Errorf("invalid_runtime_config: events.batch_size must be >= 1, got %d", c.Events.BatchSize)
		}
	}
	return nil
}
