package port

import (
	"context"
	"time"

	"campaign-discounts/internal/core/domain"
)

// RedeemFunc runs inside a repository's atomic section with the current
// campaign and the usage record for the requested key (TransactionCount 0
// when the record did not exist yet). It may mutate both; the repository
// persists the campaign's UsedBudget, the usage counter and the returned
// redemption together, and persists nothing when it returns an error.
type RedeemFunc func(c *domain.Campaign, usage *domain.UsageRecord) (*domain.Redemption, error)

// CampaignRepository defines the persistence layer for campaigns, customers
// and usage. It is an outbound port in hexagonal architecture.
// Implementations must be concurrency-safe and make Redeem atomic.
//
// Lookups by id return (nil, nil) when the record does not exist.
type CampaignRepository interface {
	// CreateCampaign stores c and assigns its ID and timestamps.
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
	// UpdateCampaign overwrites every administrator field of c. UsedBudget is
	// never written; the stored value is loaded back into c. It returns
	// domain.ErrNotFound when the campaign does not exist.
	UpdateCampaign(ctx context.Context, c *domain.Campaign) error
	// DeleteCampaign removes the campaign together with its usage records and
	// reports whether it existed.
	DeleteCampaign(ctx context.Context, id int64) (bool, error)

	// GetActiveCampaigns returns campaigns with start <= at <= end and
	// used budget below total budget, optionally restricted to one discount
	// type, ordered by id. Targeting is not applied.
	GetActiveCampaigns(ctx context.Context, at time.Time, discountType *domain.DiscountType) ([]domain.Campaign, error)

	// CreateCustomer stores c and assigns its ID. A taken username yields
	// domain.ErrConflict.
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	// MissingCustomers returns the subset of ids that do not exist.
	MissingCustomers(ctx context.Context, ids []int64) ([]int64, error)

	// GetUsage returns the usage record for key, or a zero-count record.
	GetUsage(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error)
	// Redeem locates the campaign and the usage record for key and runs fn
	// under the implementation's isolation guarantee. It returns
	// domain.ErrNotFound when the campaign does not exist.
	Redeem(ctx context.Context, key domain.UsageKey, fn RedeemFunc) (*domain.Redemption, error)

	// GetStats returns aggregated redemptions in a period.
	GetStats(ctx context.Context, req StatsReq) (*StatsResp, error)
}
