package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	sharedcfg "github.com/paystream-labs/paystream/common/config"
)

type Config struct {
	Server    sharedcfg.ServerConfig   `mapstructure:"server"`
	Postgres  sharedcfg.PostgresConfig `mapstructure:"postgres"`
	NATS      sharedcfg.NATSConfig     `mapstructure:"nats"`
	Redis     sharedcfg.RedisConfig    `mapstructure:"redis"`
	Vault     sharedcfg.VaultConfig    `mapstructure:"vault"`
	Admin     sharedcfg.AdminConfig    `mapstructure:"admin"`
	Ingestion IngestionConfig          `mapstructure:"ingestion"`
	Logging   sharedcfg.LoggingConfig  `mapstructure:"logging"`
}

type IngestionConfig struct {
	// Providers are the platform identifiers accepted on /webhooks/{provider}.
	Providers []string `mapstructure:"providers"`

	// Environment selects which credential rows the pipeline reads.
	Environment string `mapstructure:"environment"`

	// SkipVerification disables signature checks. Refused when environment
	// is production.
	SkipVerification bool `mapstructure:"skip_verification"`

	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.database", "paystream")
	v.SetDefault("postgres.user", "paystream")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("admin.token_ttl", "12h")
	v.SetDefault("ingestion.providers", []string{"stripe", "cartpanda", "hotmart"})
	v.SetDefault("ingestion.environment", "production")
	v.SetDefault("ingestion.skip_verification", false)
	v.SetDefault("ingestion.rate_limit_enabled", true)
	v.SetDefault("ingestion.rate_limit_requests", 1000)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/paystream/webhook")
	}

	// Environment variables override
	v.SetEnvPrefix("WEBHOOK")
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
