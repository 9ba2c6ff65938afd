package domain

import (
	"time"
)

// Redemption is a record of a discount being applied to an order.
type Redemption struct {
	ID         string
	CampaignID int64
	CustomerID int64
	Day        time.Time
	Order      Order
	CreatedAt  time.Time
}
