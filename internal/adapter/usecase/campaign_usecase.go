package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
	"campaign-discounts/internal/metrics"
)

const tracerName = "campaign-discounts/usecase"

// CampaignUseCase provides business logic for campaign eligibility and
// discount application. It orchestrates domain and repositories to
// implement the port.CampaignUseCase interface.
type CampaignUseCase struct {
	repo    port.CampaignRepository
	locker  port.Locker
	metrics *metrics.Metrics
	tracer  trace.Tracer

	now func() time.Time
	// loc decides where a calendar day starts for daily usage limits.
	loc *time.Location
}

type Option func(*CampaignUseCase)

// WithLocker serializes ApplyDiscount per campaign across instances on top
// of the repository's own guarantee.
func WithLocker(l port.Locker) Option {
	return func(u *CampaignUseCase) { u.locker = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(u *CampaignUseCase) { u.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(u *CampaignUseCase) { u.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(u *CampaignUseCase) {
		if loc != nil {
			u.loc = loc
		}
	}
}

// NewCampaignUseCase creates a new usecase with the provided repository.
// Days roll over at midnight UTC unless WithLocation is given.
func NewCampaignUseCase(repo port.CampaignRepository, opts ...Option) *CampaignUseCase {
	u := &CampaignUseCase{
		repo:   repo,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ListEligible returns active campaigns, narrowed by discount type and by
// targeting when a customer is given. Reads are side-effect free.
func (u *CampaignUseCase) ListEligible(ctx context.Context, req port.EligibleReq) ([]domain.Campaign, error) {
	ctx, span := u.tracer.Start(ctx, "CampaignUseCase.ListEligible")
	defer span.End()

	at := req.At
	if at.IsZero() {
		at = u.now()
	}
	if req.CustomerID != nil {
		span.SetAttributes(attribute.Int64("customer.id", *req.CustomerID))
		cust, err := u.repo.GetCustomer(ctx, *req.CustomerID)
		if err != nil {
			return nil, fail(span, err)
		}
		if cust == nil {
			return nil, fail(span, fmt.Errorf("%w: %w: customer %d", domain.ErrInvalidInput, domain.ErrNotFound, *req.CustomerID))
		}
	}

	active, err := u.repo.GetActiveCampaigns(ctx, at, req.DiscountType)
	if err != nil {
		return nil, fail(span, err)
	}
	eligible := make([]domain.Campaign, 0, len(active))
	for _, c := range active {
		if req.CustomerID != nil && !c.Targeting.Allows(*req.CustomerID) {
			continue
		}
		eligible = append(eligible, c)
	}

	u.metrics.ObserveEligibility(req.CustomerID != nil, len(eligible))
	span.SetAttributes(attribute.Int("campaigns.eligible", len(eligible)))
	return eligible, nil
}

// ApplyDiscount prices the order and records the redemption. The limit,
// window, targeting and budget checks run inside repo.Redeem so that two
// concurrent requests can never both pass them against the same state.
func (u *CampaignUseCase) ApplyDiscount(ctx context.Context, req port.ApplyReq) (*port.ApplyResp, error) {
	ctx, span := u.tracer.Start(ctx, "CampaignUseCase.ApplyDiscount", trace.WithAttributes(
		attribute.Int64("campaign.id", req.CampaignID),
		attribute.Int64("customer.id", req.CustomerID),
	))
	defer span.End()

	var discountType domain.DiscountType
	resp, err := u.applyDiscount(ctx, req, &discountType)
	if err != nil {
		u.metrics.ObserveApplication(discountType, err, decimal.Zero)
		return nil, fail(span, err)
	}
	u.metrics.ObserveApplication(discountType, nil, resp.DiscountApplied)
	span.SetAttributes(
		attribute.String("redemption.id", resp.RedemptionID),
		attribute.String("discount.applied", resp.DiscountApplied.StringFixed(2)),
	)
	return resp, nil
}

func (u *CampaignUseCase) applyDiscount(ctx context.Context, req port.ApplyReq, discountType *domain.DiscountType) (*port.ApplyResp, error) {
	if req.CampaignID <= 0 || req.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: campaign and customer ids must be positive", domain.ErrInvalidInput)
	}
	order, err := domain.NewOrder(req.Subtotal, req.DeliveryFee)
	if err != nil {
		return nil, err
	}

	cust, err := u.repo.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if cust == nil {
		return nil, fmt.Errorf("%w: customer %d", domain.ErrNotFound, req.CustomerID)
	}

	if u.locker != nil {
		release, err := u.locker.Lock(ctx, fmt.Sprintf("campaign:%d", req.CampaignID))
		if err != nil {
			if errors.Is(err, port.ErrLockTimeout) {
				return nil, fmt.Errorf("%w: campaign %d is busy", domain.ErrConflict, req.CampaignID)
			}
			return nil, err
		}
		defer release()
	}

	now := u.now()
	key := domain.UsageKey{
		CampaignID: req.CampaignID,
		CustomerID: req.CustomerID,
		Day:        domain.UsageDay(now, u.loc),
	}
	red, err := u.repo.Redeem(ctx, key, func(c *domain.Campaign, usage *domain.UsageRecord) (*domain.Redemption, error) {
		*discountType = c.DiscountType
		priced, err := c.Redeem(usage, order, now)
		if err != nil {
			return nil, err
		}
		return &domain.Redemption{
			ID:         uuid.NewString(),
			CampaignID: c.ID,
			CustomerID: req.CustomerID,
			Day:        key.Day,
			Order:      priced,
			CreatedAt:  now.UTC(),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &port.ApplyResp{
		RedemptionID:    red.ID,
		Subtotal:        red.Order.Subtotal,
		DeliveryFee:     red.Order.DeliveryFee,
		DiscountApplied: red.Order.DiscountApplied,
		Total:           red.Order.Total,
	}, nil
}

func (u *CampaignUseCase) CreateCampaign(ctx context.Context, in port.CampaignInput) (*domain.Campaign, error) {
	c := &domain.Campaign{UsedBudget: decimal.Zero, Targeting: domain.Global()}
	applyInput(c, in)
	if err := u.validateCampaign(ctx, c); err != nil {
		return nil, err
	}
	if err := u.repo.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (u *CampaignUseCase) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, err := u.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: campaign %d", domain.ErrNotFound, id)
	}
	return c, nil
}

func (u *CampaignUseCase) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return u.repo.ListCampaigns(ctx)
}

// UpdateCampaign replaces the administrator fields of a campaign. The used
// budget is preserved and the new total budget may not drop below it.
func (u *CampaignUseCase) UpdateCampaign(ctx context.Context, id int64, in port.CampaignInput) (*domain.Campaign, error) {
	c, err := u.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	applyInput(c, in)
	if err = u.validateCampaign(ctx, c); err != nil {
		return nil, err
	}
	if err = u.repo.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (u *CampaignUseCase) DeleteCampaign(ctx context.Context, id int64) error {
	ok, err := u.repo.DeleteCampaign(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: campaign %d", domain.ErrNotFound, id)
	}
	return nil
}

func (u *CampaignUseCase) CreateCustomer(ctx context.Context, in port.CustomerInput) (*domain.Customer, error) {
	c := &domain.Customer{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.TrimSpace(in.Email),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (u *CampaignUseCase) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	c, err := u.repo.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: customer %d", domain.ErrNotFound, id)
	}
	return c, nil
}

// GetStats returns aggregated stats for campaigns in a period.
func (u *CampaignUseCase) GetStats(ctx context.Context, req port.StatsReq) (*port.StatsResp, error) {
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("%w: period end precedes start", domain.ErrInvalidInput)
	}
	return u.repo.GetStats(ctx, req)
}

func applyInput(c *domain.Campaign, in port.CampaignInput) {
	c.Name = strings.TrimSpace(in.Name)
	c.DiscountType = in.DiscountType
	c.DiscountValue = in.DiscountValue
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.TotalBudget = in.TotalBudget
	c.DailyUsageLimit = in.DailyUsageLimit
	if in.Targeting != nil {
		c.Targeting = *in.Targeting
	}
}

func (u *CampaignUseCase) validateCampaign(ctx context.Context, c *domain.Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.Targeting = c.Targeting.Normalize()
	if c.Targeting.IsGlobal() || len(c.Targeting.Customers) == 0 {
		return nil
	}
	missing, err := u.repo.MissingCustomers(ctx, c.Targeting.Customers)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: unknown customers in targeting: %v", domain.ErrInvalidInput, missing)
	}
	return nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
