//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-discounts/internal/adapter/postgres"
	"campaign-discounts/internal/adapter/usecase"
	"campaign-discounts/internal/config/configs"
	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
	"campaign-discounts/internal/db"
)

// Run with: PSQL_TEST_ADDRESS=postgres://... go test -tags integration ./internal/adapter/postgres/
func newRepository(t *testing.T) *postgres.CampaignRepository {
	t.Helper()
	addr := os.Getenv("PSQL_TEST_ADDRESS")
	if addr == "" {
		t.Skip("PSQL_TEST_ADDRESS not set")
	}
	u, err := url.Parse(addr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(addr))
	ctx := context.Background()
	pool, err := db.NewPostgresPool(ctx, configs.Postgres{Addr: *u, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE redemptions, discount_usage, campaign_targeting, campaigns, customers RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return postgres.NewCampaignRepository(pool)
}

func seed(t *testing.T, repo *postgres.CampaignRepository, limit int, budget string, customers int) (domain.Campaign, []int64) {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, customers)
	for i := 0; i < customers; i++ {
		c := &domain.Customer{Username: "customer-" + string(rune('a'+i))}
		require.NoError(t, repo.CreateCustomer(ctx, c))
		ids = append(ids, c.ID)
	}
	now := time.Now().UTC()
	c := domain.Campaign{
		Name:            "integration",
		DiscountType:    domain.DiscountCart,
		DiscountValue:   decimal.NewFromInt(10),
		StartDate:       now.Add(-time.Hour),
		EndDate:         now.Add(time.Hour),
		TotalBudget:     decimal.RequireFromString(budget),
		UsedBudget:      decimal.Zero,
		DailyUsageLimit: limit,
		Targeting:       domain.Global(),
	}
	require.NoError(t, repo.CreateCampaign(ctx, &c))
	return c, ids
}

func TestRedeemSingleUseUnderContention(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	c, customers := seed(t, repo, 1, "1000", 1)
	svc := usecase.NewCampaignUseCase(repo)

	const workers = 16
	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.ApplyDiscount(ctx, port.ApplyReq{CampaignID: c.ID, CustomerID: customers[0], Subtotal: decimal.NewFromInt(20)})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrLimitExceeded), errors.Is(err, domain.ErrConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	stored, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.00", stored.UsedBudget.StringFixed(2))

	usage, err := repo.GetUsage(ctx, domain.UsageKey{CampaignID: c.ID, CustomerID: customers[0], Day: domain.UsageDay(time.Now(), nil)})
	require.NoError(t, err)
	assert.Equal(t, 1, usage.TransactionCount)
}

func TestRedeemNeverOverspends(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	c, customers := seed(t, repo, 5, "50", 12)
	svc := usecase.NewCampaignUseCase(repo)

	var wg sync.WaitGroup
	wg.Add(len(customers))
	for _, id := range customers {
		id := id
		go func() {
			defer wg.Done()
			_, _ = svc.ApplyDiscount(ctx, port.ApplyReq{CampaignID: c.ID, CustomerID: id, Subtotal: decimal.NewFromInt(100)})
		}()
	}
	wg.Wait()

	stored, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.UsedBudget.LessThanOrEqual(stored.TotalBudget))

	stats, err := repo.GetStats(ctx, port.StatsReq{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, stats.DiscountTotal.Equal(stored.UsedBudget), "ledger %s, used %s", stats.DiscountTotal, stored.UsedBudget)
}

func TestRedeemRollsBackRejections(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)
	c, customers := seed(t, repo, 1, "1000", 1)
	key := domain.UsageKey{CampaignID: c.ID, CustomerID: customers[0], Day: domain.UsageDay(time.Now(), nil)}

	boom := errors.New("boom")
	_, err := repo.Redeem(ctx, key, func(c *domain.Campaign, u *domain.UsageRecord) (*domain.Redemption, error) {
		c.UsedBudget = decimal.NewFromInt(500)
		u.TransactionCount = 3
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	usage, err := repo.GetUsage(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, usage.TransactionCount)
	stored, err := repo.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.UsedBudget.IsZero())

	_, err = repo.Redeem(ctx, domain.UsageKey{CampaignID: 999, CustomerID: customers[0], Day: key.Day}, func(*domain.Campaign, *domain.UsageRecord) (*domain.Redemption, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
