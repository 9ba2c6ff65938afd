package configs

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Discount holds engine settings.
type Discount struct {
	// Timezone is the IANA zone whose midnight resets daily usage limits.
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`
}

// Location resolves Timezone.
func (c Discount) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("discount timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
