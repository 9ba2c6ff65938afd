package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-discounts/internal/adapter/memory"
)

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCampaignRepository()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, Seed(ctx, repo, now))
	campaigns, err := repo.ListCampaigns(ctx)
	require.NoError(t, err)
	require.Len(t, campaigns, 6)

	for _, c := range campaigns {
		assert.NoError(t, c.Validate())
		assert.True(t, c.IsActive(now), "campaign %d should be active", c.ID)
	}

	require.NoError(t, Seed(ctx, repo, now))
	again, err := repo.ListCampaigns(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 6)

	missing, err := repo.MissingCustomers(ctx, []int64{1, 10, 11})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, missing)
}
