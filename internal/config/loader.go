package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from an optional YAML file and environment variables.
// Priority: ENV > YAML > env-default tags. The file path comes from CONFIG_PATH; when it
// is unset only ENV and defaults are used.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite (got %q)", c.Database.Driver)
	}
	switch c.Queue.Backend {
	case "memory", "amqp":
	default:
		return fmt.Errorf("queue.backend must be memory or amqp (got %q)", c.Queue.Backend)
	}
	switch c.Events.Backend {
	case "noop", "kafka", "redis":
	default:
		return fmt.Errorf("events.backend must be noop, kafka or redis (got %q)", c.Events.Backend)
	}
	if c.Publish.ProviderTimeout <= 0 {
		return fmt.Errorf("publish.provider_timeout must be > 0")
	}
	if c.Publish.BulkConcurrency < 1 {
		return fmt.Errorf("publish.bulk_concurrency must be >= 1 (got %d)", c.Publish.BulkConcurrency)
	}
	if c.Providers.MockFailureRate < 0 || c.Providers.MockFailureRate > 1 {
		return fmt.Errorf("providers.mock_failure_rate must be within [0,1]")
	}
	return nil
}
