package domain

import (
	"fmt"
	"strings"
	"time"
)

// Customer is a shopper that campaigns can target.
type Customer struct {
	ID        int64
	Username  string
	Email     string
	CreatedAt time.Time
}

func (c *Customer) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return nil
}
