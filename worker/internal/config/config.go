package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	sharedcfg "github.com/paystream-labs/paystream/common/config"
)

type Config struct {
	Server     sharedcfg.ServerConfig   `mapstructure:"server"`
	Postgres   sharedcfg.PostgresConfig `mapstructure:"postgres"`
	NATS       sharedcfg.NATSConfig     `mapstructure:"nats"`
	Processing ProcessingConfig         `mapstructure:"processing"`
	Logging    sharedcfg.LoggingConfig  `mapstructure:"logging"`
}

type ProcessingConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	BackoffCap     time.Duration `mapstructure:"backoff_cap"`

	// ConsumerName is the durable JetStream consumer shared by all worker
	// instances.
	ConsumerName string `mapstructure:"consumer_name"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8081)
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
	v.SetDefault("processing.max_retries", 5)
	v.SetDefault("processing.handler_timeout", "30s")
	v.SetDefault("processing.backoff_base", "5s")
	v.SetDefault("processing.backoff_cap", "5m")
	v.SetDefault("processing.consumer_name", "webhook-workers")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/paystream/worker")
	}

	// Environment variables override
	v.SetEnvPrefix("WORKER")
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
