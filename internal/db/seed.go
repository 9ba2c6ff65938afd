package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
)

// Seed inserts demo customers and campaigns through repo. It does nothing
// when campaigns already exist, so it is safe to run on every start.
func Seed(ctx context.Context, repo port.CampaignRepository, now time.Time) error {
	existing, err := repo.ListCampaigns(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	r := rand.New(rand.NewSource(now.UnixNano()))

	customers := make([]int64, 0, 10)
	for i := 1; i <= 10; i++ {
		c := &domain.Customer{
			Username: fmt.Sprintf("customer-%d", i),
			Email:    fmt.Sprintf("customer-%d@example.com", i),
		}
		if err = repo.CreateCustomer(ctx, c); err != nil {
			if !errors.Is(err, domain.ErrConflict) {
				return err
			}
			continue
		}
		customers = append(customers, c.ID)
	}

	types := []domain.DiscountType{domain.DiscountCart, domain.DiscountDelivery}
	for i := 1; i <= 6; i++ {
		c := &domain.Campaign{
			Name:            fmt.Sprintf("Campaign %d", i),
			DiscountType:    types[i%2],
			DiscountValue:   decimal.NewFromInt(int64(5 * (1 + r.Intn(6)))),
			StartDate:       now.AddDate(0, 0, -1),
			EndDate:         now.AddDate(0, 1, 0),
			TotalBudget:     decimal.NewFromInt(int64(500 * (1 + r.Intn(10)))),
			UsedBudget:      decimal.Zero,
			DailyUsageLimit: 1 + r.Intn(3),
			Targeting:       domain.Global(),
		}
		// every third campaign is restricted to a random half of the customers
		if i%3 == 0 && len(customers) > 0 {
			picked := make([]int64, 0, len(customers)/2+1)
			for _, id := range customers {
				if r.Intn(2) == 0 {
					picked = append(picked, id)
				}
			}
			c.Targeting = domain.RestrictedTo(picked...)
		}
		if err = c.Validate(); err != nil {
			return err
		}
		if err = repo.CreateCampaign(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
