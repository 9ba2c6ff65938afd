package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	start = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2026, 3, 31, 23, 59, 59, 0, time.UTC)
)

func newCampaign(t DiscountType) Campaign {
	return Campaign{
		ID:              7,
		Name:            "spring",
		DiscountType:    t,
		DiscountValue:   decimal.NewFromInt(10),
		StartDate:       start,
		EndDate:         end,
		TotalBudget:     decimal.NewFromInt(100),
		UsedBudget:      decimal.Zero,
		DailyUsageLimit: 2,
		Targeting:       Global(),
	}
}

func newUsage(customerID int64) *UsageRecord {
	return &UsageRecord{Key: UsageKey{CampaignID: 7, CustomerID: customerID, Day: UsageDay(start, nil)}}
}

func mustOrder(t *testing.T, subtotal, fee string) Order {
	t.Helper()
	o, err := NewOrder(decimal.RequireFromString(subtotal), decimal.RequireFromString(fee))
	require.NoError(t, err)
	return o
}

func TestCampaignWindowInclusive(t *testing.T) {
	c := newCampaign(DiscountCart)

	assert.True(t, c.InWindow(start))
	assert.True(t, c.InWindow(end))
	assert.False(t, c.InWindow(start.Add(-time.Nanosecond)))
	assert.False(t, c.InWindow(end.Add(time.Nanosecond)))
}

func TestCampaignBudgetExhaustedIsInactive(t *testing.T) {
	c := newCampaign(DiscountCart)
	now := start.Add(time.Hour)
	require.True(t, c.IsActive(now))

	c.UsedBudget = c.TotalBudget
	assert.False(t, c.IsActive(now))
	assert.True(t, c.RemainingBudget().IsZero())

	c.UsedBudget = decimal.NewFromInt(150)
	assert.True(t, c.RemainingBudget().IsZero())
}

func TestRedeemCart(t *testing.T) {
	c := newCampaign(DiscountCart)
	usage := newUsage(1)

	got, err := c.Redeem(usage, mustOrder(t, "100", "20"), start.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "10.00", got.DiscountApplied.StringFixed(2))
	assert.Equal(t, "110.00", got.Total.StringFixed(2))
	assert.Equal(t, 1, usage.TransactionCount)
	assert.True(t, c.UsedBudget.Equal(decimal.NewFromInt(10)))
}

func TestRedeemDelivery(t *testing.T) {
	c := newCampaign(DiscountDelivery)
	usage := newUsage(1)

	got, err := c.Redeem(usage, mustOrder(t, "100", "20"), start.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "2.00", got.DiscountApplied.StringFixed(2))
	assert.Equal(t, "118.00", got.Total.StringFixed(2))
	assert.True(t, c.UsedBudget.Equal(decimal.NewFromInt(2)))
}

func TestRedeemRoundsAndKeepsTotalConsistent(t *testing.T) {
	c := newCampaign(DiscountCart)
	c.DiscountValue = decimal.RequireFromString("12.5")

	// 12.5% of 10.02 = 1.2525 -> 1.25
	got, err := c.Redeem(newUsage(1), mustOrder(t, "10.02", "3.10"), start)
	require.NoError(t, err)

	assert.Equal(t, "1.25", got.DiscountApplied.StringFixed(2))
	assert.Equal(t, "11.87", got.Total.StringFixed(2))
	assert.True(t, got.Subtotal.Add(got.DeliveryFee).Sub(got.DiscountApplied).Equal(got.Total))
	assert.True(t, c.UsedBudget.Equal(got.DiscountApplied))
}

func TestRedeemLimitExceededLeavesStateUntouched(t *testing.T) {
	c := newCampaign(DiscountCart)
	usage := newUsage(1)
	usage.TransactionCount = c.DailyUsageLimit

	_, err := c.Redeem(usage, mustOrder(t, "100", "20"), start)
	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, c.DailyUsageLimit, usage.TransactionCount)
	assert.True(t, c.UsedBudget.IsZero())
}

func TestRedeemRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Campaign)
		now    time.Time
		want   error
	}{
		{
			name:   "before window",
			mutate: func(*Campaign) {},
			now:    start.Add(-time.Minute),
			want:   ErrNotEligible,
		},
		{
			name:   "targeted at someone else",
			mutate: func(c *Campaign) { c.Targeting = RestrictedTo(2, 3) },
			now:    start,
			want:   ErrNotEligible,
		},
		{
			name:   "discount overruns budget",
			mutate: func(c *Campaign) { c.UsedBudget = decimal.RequireFromString("95.01") },
			now:    start,
			want:   ErrBudgetExhausted,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newCampaign(DiscountCart)
			tc.mutate(&c)
			used := c.UsedBudget
			usage := newUsage(1)

			_, err := c.Redeem(usage, mustOrder(t, "100", "20"), tc.now)
			require.ErrorIs(t, err, tc.want)
			assert.Zero(t, usage.TransactionCount)
			assert.True(t, c.UsedBudget.Equal(used))
		})
	}
}

func TestRedeemSpendsBudgetExactly(t *testing.T) {
	c := newCampaign(DiscountCart)
	c.UsedBudget = decimal.NewFromInt(90)

	_, err := c.Redeem(newUsage(1), mustOrder(t, "100", "0"), start)
	require.NoError(t, err)
	assert.False(t, c.HasBudget())
}

func TestCampaignValidate(t *testing.T) {
	ok := newCampaign(DiscountCart)
	require.NoError(t, ok.Validate())

	tests := map[string]func(c *Campaign){
		"empty name":     func(c *Campaign) { c.Name = " " },
		"bad type":       func(c *Campaign) { c.DiscountType = "shipping" },
		"value over 100": func(c *Campaign) { c.DiscountValue = decimal.NewFromInt(101) },
		"negative value": func(c *Campaign) { c.DiscountValue = decimal.NewFromInt(-1) },
		"reversed dates": func(c *Campaign) { c.StartDate, c.EndDate = c.EndDate, c.StartDate },
		"zero limit":     func(c *Campaign) { c.DailyUsageLimit = 0 },
		"budget below used": func(c *Campaign) {
			c.UsedBudget = decimal.NewFromInt(50)
			c.TotalBudget = decimal.NewFromInt(40)
		},
		"global with customers": func(c *Campaign) { c.Targeting = Targeting{Kind: TargetingGlobal, Customers: []int64{1}} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := newCampaign(DiscountCart)
			mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidInput)
		})
	}
}

func TestParseDiscountType(t *testing.T) {
	got, err := ParseDiscountType(" Delivery ")
	require.NoError(t, err)
	assert.Equal(t, DiscountDelivery, got)

	_, err = ParseDiscountType("bogus")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewOrderRejectsNegativeAmounts(t *testing.T) {
	_, err := NewOrder(decimal.NewFromInt(-1), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
