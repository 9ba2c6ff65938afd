package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
)

// CampaignUseCase defines the business operations exposed by the discount
// engine. This interface represents the primary port into the application
// domain.
type CampaignUseCase interface {
	// ListEligible returns the campaigns usable at req.At: inside their
	// window, with budget left, of the requested type and, when a customer
	// is given, targeted at that customer. An unknown customer fails with
	// domain.ErrInvalidInput (wrapping domain.ErrNotFound) rather than
	// yielding an empty list.
	ListEligible(ctx context.Context, req EligibleReq) ([]domain.Campaign, error)

	// ApplyDiscount prices the order with the campaign for the customer,
	// enforcing the daily usage limit and the budget cap, and records the
	// usage and spend atomically. It fails with domain.ErrNotFound for an
	// unknown campaign or customer and domain.ErrLimitExceeded once the
	// customer has used the campaign DailyUsageLimit times today.
	ApplyDiscount(ctx context.Context, req ApplyReq) (*ApplyResp, error)

	CreateCampaign(ctx context.Context, in CampaignInput) (*domain.Campaign, error)
	GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context) ([]domain.Campaign, error)
	UpdateCampaign(ctx context.Context, id int64, in CampaignInput) (*domain.Campaign, error)
	DeleteCampaign(ctx context.Context, id int64) error

	CreateCustomer(ctx context.Context, in CustomerInput) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)

	// GetStats returns redemption count and discount total for the
	// specified campaign (optional) and time period.
	GetStats(ctx context.Context, req StatsReq) (*StatsResp, error)
}

// EligibleReq filters ListEligible. A zero At means "now".
type EligibleReq struct {
	At           time.Time
	DiscountType *domain.DiscountType
	CustomerID   *int64
}

// ApplyReq is an order submitted for discounting.
type ApplyReq struct {
	CampaignID  int64
	CustomerID  int64
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
}

// ApplyResp is the discounted order. It is a DTO used by the HTTP layer and
// does not contain domain behaviour.
type ApplyResp struct {
	RedemptionID    string
	Subtotal        decimal.Decimal
	DeliveryFee     decimal.Decimal
	DiscountApplied decimal.Decimal
	Total           decimal.Decimal
}

// CampaignInput carries the administrator-editable campaign fields.
type CampaignInput struct {
	Name            string
	DiscountType    domain.DiscountType
	DiscountValue   decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	TotalBudget     decimal.Decimal
	DailyUsageLimit int
	// Targeting nil keeps the current targeting on update and means global
	// on create.
	Targeting *domain.Targeting
}

type CustomerInput struct {
	Username string
	Email    string
}

// StatsResp contains aggregated redemption counts and discount spend.
type StatsResp struct {
	Redemptions   int64
	DiscountTotal decimal.Decimal
}

type StatsReq struct {
	From       time.Time
	To         time.Time
	CampaignID *int64
}
