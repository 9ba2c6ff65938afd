package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects which part of an order a campaign discounts.
type DiscountType string

const (
	DiscountCart     DiscountType = "cart"     // percentage of the subtotal
	DiscountDelivery DiscountType = "delivery" // percentage of the delivery fee
)

// ParseDiscountType validates a textual discount type.
func ParseDiscountType(s string) (DiscountType, error) {
	switch t := DiscountType(strings.ToLower(strings.TrimSpace(s))); t {
	case DiscountCart, DiscountDelivery:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown discount type %q", ErrInvalidInput, s)
	}
}

var hundred = decimal.NewFromInt(100)

// Campaign represents a time-boxed, budget-capped discount offer.
// DiscountValue is a percentage in [0,100]. Budgets are currency amounts and
// UsedBudget only ever grows through Redeem.
type Campaign struct {
	ID              int64
	Name            string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	TotalBudget     decimal.Decimal
	UsedBudget      decimal.Decimal
	DailyUsageLimit int // transactions per customer per day
	Targeting       Targeting
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (c *Campaign) InWindow(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// HasBudget reports whether any budget is left.
func (c *Campaign) HasBudget() bool {
	return c.UsedBudget.LessThan(c.TotalBudget)
}

// IsActive is the eligibility predicate without targeting: inside the
// window and not budget-exhausted.
func (c *Campaign) IsActive(now time.Time) bool {
	return c.InWindow(now) && c.HasBudget()
}

// RemainingBudget returns TotalBudget - UsedBudget, floored at zero.
func (c *Campaign) RemainingBudget() decimal.Decimal {
	rest := c.TotalBudget.Sub(c.UsedBudget)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Validate checks the administrator-supplied fields.
func (c *Campaign) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case c.DiscountType != DiscountCart && c.DiscountType != DiscountDelivery:
		return fmt.Errorf("%w: unknown discount type %q", ErrInvalidInput, c.DiscountType)
	case c.DiscountValue.IsNegative() || c.DiscountValue.GreaterThan(hundred):
		return fmt.Errorf("%w: discount value must be between 0 and 100", ErrInvalidInput)
	case c.StartDate.IsZero() || c.EndDate.IsZero():
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidInput)
	case c.EndDate.Before(c.StartDate):
		return fmt.Errorf("%w: end date precedes start date", ErrInvalidInput)
	case c.TotalBudget.IsNegative():
		return fmt.Errorf("%w: total budget must not be negative", ErrInvalidInput)
	case c.TotalBudget.LessThan(c.UsedBudget):
		return fmt.Errorf("%w: total budget %s is below used budget %s", ErrInvalidInput,
			c.TotalBudget.StringFixed(2), c.UsedBudget.StringFixed(2))
	case c.DailyUsageLimit < 1:
		return fmt.Errorf("%w: daily usage limit must be positive", ErrInvalidInput)
	}
	return c.Targeting.Validate()
}

// Redeem applies the campaign to order on behalf of usage's customer. On
// success it increments usage.TransactionCount and c.UsedBudget and returns
// the priced order. On error neither c nor usage is modified.
//
// The caller must hold whatever guard serializes redemptions of c.
func (c *Campaign) Redeem(usage *UsageRecord, order Order, now time.Time) (Order, error) {
	if usage.TransactionCount >= c.DailyUsageLimit {
		return order, fmt.Errorf("%w: campaign %d used %d of %d times today",
			ErrLimitExceeded, c.ID, usage.TransactionCount, c.DailyUsageLimit)
	}
	if !c.InWindow(now) {
		return order, fmt.Errorf("%w: campaign %d is outside its validity window", ErrNotEligible, c.ID)
	}
	if !c.Targeting.Allows(usage.Key.CustomerID) {
		return order, fmt.Errorf("%w: campaign %d is not available to customer %d",
			ErrNotEligible, c.ID, usage.Key.CustomerID)
	}

	priced := order.WithDiscount(order.DiscountFor(c.DiscountType, c.DiscountValue))
	if c.UsedBudget.Add(priced.DiscountApplied).GreaterThan(c.TotalBudget) {
		return order, fmt.Errorf("%w: campaign %d has %s left, discount is %s", ErrBudgetExhausted,
			c.ID, c.RemainingBudget().StringFixed(2), priced.DiscountApplied.StringFixed(2))
	}

	usage.TransactionCount++
	c.UsedBudget = c.UsedBudget.Add(priced.DiscountApplied)
	return priced, nil
}
