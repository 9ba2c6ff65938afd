package configs

import "time"

// Redis configures the optional distributed lock that serializes discount
// applications per campaign across service instances. The lock is only
// used when Enabled is set.
type Redis struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Addr     string `env:"ADDRESS" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`

	// LockTTL bounds how long a crashed holder can keep a campaign locked.
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"5s"`
	// LockWait is how long Lock keeps retrying before giving up.
	LockWait time.Duration `env:"LOCK_WAIT" envDefault:"2s"`
}
