package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
)

type usageKey struct {
	campaignID int64
	customerID int64
	day        string
}

func keyOf(k domain.UsageKey) usageKey {
	return usageKey{campaignID: k.CampaignID, customerID: k.CustomerID, day: k.Day.Format(time.DateOnly)}
}

// CampaignRepository implements port.CampaignRepository in process memory.
// Redemptions of one campaign are serialized by a per-campaign mutex held
// across the whole read-check-write sequence; mu only guards the maps.
type CampaignRepository struct {
	mu          sync.RWMutex
	campaigns   map[int64]domain.Campaign
	customers   map[int64]domain.Customer
	usernames   map[string]int64
	usage       map[usageKey]int
	redemptions []domain.Redemption
	lastID      struct{ campaign, customer int64 }

	locks sync.Map // campaign id -> *sync.Mutex
	now   func() time.Time
}

// NewCampaignRepository returns an empty repository.
func NewCampaignRepository() *CampaignRepository {
	return &CampaignRepository{
		campaigns: make(map[int64]domain.Campaign),
		customers: make(map[int64]domain.Customer),
		usernames: make(map[string]int64),
		usage:     make(map[usageKey]int),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *CampaignRepository) campaignLock(id int64) *sync.Mutex {
	l, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func clone(c domain.Campaign) domain.Campaign {
	c.Targeting.Customers = slices.Clone(c.Targeting.Customers)
	return c
}

// CreateCampaign stores a copy of c.
func (r *CampaignRepository) CreateCampaign(_ context.Context, c *domain.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID.campaign++
	c.ID = r.lastID.campaign
	c.CreatedAt = r.now()
	c.UpdatedAt = c.CreatedAt
	r.campaigns[c.ID] = clone(*c)
	return nil
}

// GetCampaign returns a campaign by id.
func (r *CampaignRepository) GetCampaign(_ context.Context, id int64) (*domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, nil
	}
	c = clone(c)
	return &c, nil
}

func (r *CampaignRepository) ListCampaigns(_ context.Context) ([]domain.Campaign, error) {
	return r.collect(func(domain.Campaign) bool { return true }), nil
}

// UpdateCampaign overwrites the administrator fields; UsedBudget is owned by
// Redeem and is copied back into c. It holds the campaign lock so the budget
// check cannot interleave with a running Redeem.
func (r *CampaignRepository) UpdateCampaign(_ context.Context, c *domain.Campaign) error {
	lock := r.campaignLock(c.ID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[c.ID]
	if !ok {
		return fmt.Errorf("%w: campaign %d", domain.ErrNotFound, c.ID)
	}
	if c.TotalBudget.LessThan(stored.UsedBudget) {
		return fmt.Errorf("%w: total budget below used budget %s", domain.ErrInvalidInput, stored.UsedBudget.StringFixed(2))
	}
	c.UsedBudget = stored.UsedBudget
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = r.now()
	r.campaigns[c.ID] = clone(*c)
	return nil
}

// DeleteCampaign drops the campaign, its usage records and its lock.
// Redemptions are kept as history. Ids are never reused, so a Redeem still
// waiting on the dropped lock just finds the campaign gone.
func (r *CampaignRepository) DeleteCampaign(_ context.Context, id int64) (bool, error) {
	lock := r.campaignLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.locks.Delete(id)
	if _, ok := r.campaigns[id]; !ok {
		return false, nil
	}
	delete(r.campaigns, id)
	for k := range r.usage {
		if k.campaignID == id {
			delete(r.usage, k)
		}
	}
	return true, nil
}

func (r *CampaignRepository) GetActiveCampaigns(_ context.Context, at time.Time, discountType *domain.DiscountType) ([]domain.Campaign, error) {
	return r.collect(func(c domain.Campaign) bool {
		if discountType != nil && c.DiscountType != *discountType {
			return false
		}
		return c.IsActive(at)
	}), nil
}

func (r *CampaignRepository) collect(keep func(domain.Campaign) bool) []domain.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		if keep(c) {
			out = append(out, clone(c))
		}
	}
	slices.SortFunc(out, func(a, b domain.Campaign) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (r *CampaignRepository) CreateCustomer(_ context.Context, c *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.usernames[c.Username]; taken {
		return fmt.Errorf("%w: username %q", domain.ErrConflict, c.Username)
	}
	r.lastID.customer++
	c.ID = r.lastID.customer
	c.CreatedAt = r.now()
	r.customers[c.ID] = *c
	r.usernames[c.Username] = c.ID
	return nil
}

func (r *CampaignRepository) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CampaignRepository) MissingCustomers(_ context.Context, ids []int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []int64
	for _, id := range ids {
		if _, ok := r.customers[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *CampaignRepository) GetUsage(_ context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &domain.UsageRecord{Key: key, TransactionCount: r.usage[keyOf(key)]}, nil
}

// Redeem runs fn while holding the campaign's mutex, then stores the new
// used budget, usage counter and redemption in one step.
func (r *CampaignRepository) Redeem(ctx context.Context, key domain.UsageKey, fn port.RedeemFunc) (*domain.Redemption, error) {
	lock := r.campaignLock(key.CampaignID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k := keyOf(key)
	r.mu.RLock()
	c, ok := r.campaigns[key.CampaignID]
	count := r.usage[k]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: campaign %d", domain.ErrNotFound, key.CampaignID)
	}

	c = clone(c)
	usage := &domain.UsageRecord{Key: key, TransactionCount: count}
	red, err := fn(&c, usage)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[key.CampaignID]
	if !ok {
		return nil, fmt.Errorf("%w: campaign %d", domain.ErrNotFound, key.CampaignID)
	}
	stored.UsedBudget = c.UsedBudget
	stored.UpdatedAt = r.now()
	r.campaigns[key.CampaignID] = stored
	r.usage[k] = usage.TransactionCount
	if red != nil {
		if red.CreatedAt.IsZero() {
			red.CreatedAt = stored.UpdatedAt
		}
		r.redemptions = append(r.redemptions, *red)
	}
	return red, nil
}

func (r *CampaignRepository) GetStats(_ context.Context, req port.StatsReq) (*port.StatsResp, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp := &port.StatsResp{DiscountTotal: decimal.Zero}
	for _, red := range r.redemptions {
		if red.CreatedAt.Before(req.From) || red.CreatedAt.After(req.To) {
			continue
		}
		if req.CampaignID != nil && red.CampaignID != *req.CampaignID {
			continue
		}
		resp.Redemptions++
		resp.DiscountTotal = resp.DiscountTotal.Add(red.Order.DiscountApplied)
	}
	return resp, nil
}
