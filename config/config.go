package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Credential CredentialConfig `mapstructure:"credential"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, memory
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Operation id register backends.
const (
	DedupOff    = "off"
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

type LedgerConfig struct {
	AdminToken      string        `mapstructure:"admin_token"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	HistoryPageSize int           `mapstructure:"history_page_size"`
	DedupBackend    string        `mapstructure:"dedup_backend"` // off, memory, redis
	DedupLimit      int           `mapstructure:"dedup_limit"`
	DedupTTL        time.Duration `mapstructure:"dedup_ttl"`
}

// CredentialConfig tunes Argon2id for wallet secrets.
type CredentialConfig struct {
	Time      uint32 `mapstructure:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib"`
	Threads   uint8  `mapstructure:"threads"`
}

// RateLimitConfig sets per-client request budgets. Counters live in Redis
// when it is enabled, in process otherwise.
type RateLimitConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Window     time.Duration `mapstructure:"window"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	WriteLimit int64         `mapstructure:"write_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLT_.
// Nested keys use underscore: WLT_DATABASE_HOST, WLT_LEDGER_ADMIN_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<16)
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ledger.admin_token", "")
	v.SetDefault("ledger.max_attempts", 3)
	v.SetDefault("ledger.retry_backoff", "20ms")
	v.SetDefault("ledger.history_page_size", 15)
	v.SetDefault("ledger.dedup_backend", DedupMemory)
	v.SetDefault("ledger.dedup_limit", 100)
	v.SetDefault("ledger.dedup_ttl", "24h")
	v.SetDefault("credential.time", 1)
	v.SetDefault("credential.memory_kib", 64*1024)
	v.SetDefault("credential.threads", 4)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.read_limit", 300)
	v.SetDefault("ratelimit.write_limit", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// WLT_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can suffice.
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

// Validate rejects combinations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Ledger.DedupBackend {
	case DedupOff, DedupMemory:
	case DedupRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("config: ledger.dedup_backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("config: unknown ledger.dedup_backend %q", c.Ledger.DedupBackend)
	}
	if c.Ledger.MaxAttempts < 1 {
		return fmt.Errorf("config: ledger.max_attempts must be at least 1")
	}
	if c.Ledger.HistoryPageSize < 1 {
		return fmt.Errorf("config: ledger.history_page_size must be at least 1")
	}
	if c.Ledger.DedupLimit < 1 {
		return fmt.Errorf("config: ledger.dedup_limit must be at least 1")
	}
	return nil
}
