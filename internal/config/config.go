package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"campaign-discounts/internal/config/configs"
)

// Supported values of StorageDriver.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config aggregates all configuration sections for the application. Fields
// are populated from environment variables using the caarlos0/env library. The
// nested structs are tagged with envPrefix so their fields are parsed with
// the given prefix. See the individual types in the configs package for
// default values and options. Use Load to construct a Config.
type Config struct {
	// Env specifies the deployment environment (e.g. prod, dev). It is
	// attached to every log record.
	Env string `env:"ENV" envDefault:"prod"`

	// StorageDriver selects the campaign repository: "postgres" or "memory".
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`

	// HTTP holds configuration for the HTTP server. Environment variables
	// prefixed with HTTP_ will populate this struct.
	HTTP configs.HTTP `envPrefix:"HTTP_"`

	// Log configures the structured logger. Environment variables prefixed
	// with LOG_ will populate this struct.
	Log configs.Logger `envPrefix:"LOG_"`

	// Psql configures the PostgreSQL connection. Environment variables
	// prefixed with PSQL_ will populate this struct.
	Psql configs.Postgres `envPrefix:"PSQL_"`

	Redis configs.Redis `envPrefix:"REDIS_"`

	Discount configs.Discount `envPrefix:"DISCOUNT_"`

	Metrics configs.Metrics `envPrefix:"METRICS_"`
}

// Load reads configuration from environment variables into a Config. If
// parsing fails, an error is returned. All fields are loaded with their
// specified defaults when no environment variable is provided.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if _, err := c.Discount.Location(); err != nil {
		return err
	}
	if c.Psql.MinConns > c.Psql.MaxConns {
		return fmt.Errorf("PSQL_MIN_CONNS %d exceeds PSQL_MAX_CONNS %d", c.Psql.MinConns, c.Psql.MaxConns)
	}
	return nil
}
