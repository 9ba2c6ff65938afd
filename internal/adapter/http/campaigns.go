package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
)

type targetingView struct {
	Kind      domain.TargetingKind `json:"kind"`
	Customers []int64              `json:"customers"`
}

type campaignView struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	DiscountType    string        `json:"discount_type"`
	DiscountValue   json.Number   `json:"discount_value"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         time.Time     `json:"end_date"`
	TotalBudget     json.Number   `json:"total_budget"`
	UsedBudget      json.Number   `json:"used_budget"`
	RemainingBudget json.Number   `json:"remaining_budget"`
	DailyUsageLimit int           `json:"daily_usage_limit"`
	Targeting       targetingView `json:"targeting"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func newCampaignView(c domain.Campaign, now time.Time) campaignView {
	t := c.Targeting.Normalize()
	customers := t.Customers
	if customers == nil {
		customers = []int64{}
	}
	return campaignView{
		ID:              c.ID,
		Name:            c.Name,
		DiscountType:    string(c.DiscountType),
		DiscountValue:   json.Number(c.DiscountValue.String()),
		StartDate:       c.StartDate,
		EndDate:         c.EndDate,
		TotalBudget:     money(c.TotalBudget),
		UsedBudget:      money(c.UsedBudget),
		RemainingBudget: money(c.RemainingBudget()),
		DailyUsageLimit: c.DailyUsageLimit,
		Targeting:       targetingView{Kind: t.Kind, Customers: customers},
		IsActive:        c.IsActive(now),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (h *Handler) campaignViews(cs []domain.Campaign) []campaignView {
	now := h.now()
	out := make([]campaignView, 0, len(cs))
	for _, c := range cs {
		out = append(out, newCampaignView(c, now))
	}
	return out
}

// campaignBody is the create/update payload. Amounts may be JSON numbers or
// numeric strings.
type campaignBody struct {
	Name            string            `json:"name"`
	DiscountType    string            `json:"discount_type"`
	DiscountValue   decimal.Decimal   `json:"discount_value"`
	StartDate       time.Time         `json:"start_date"`
	EndDate         time.Time         `json:"end_date"`
	TotalBudget     decimal.Decimal   `json:"total_budget"`
	DailyUsageLimit int               `json:"daily_usage_limit"`
	Targeting       *domain.Targeting `json:"targeting"`
}

func (b campaignBody) input() (port.CampaignInput, error) {
	dt, err := domain.ParseDiscountType(b.DiscountType)
	if err != nil {
		return port.CampaignInput{}, err
	}
	return port.CampaignInput{
		Name:            b.Name,
		DiscountType:    dt,
		DiscountValue:   b.DiscountValue,
		StartDate:       b.StartDate,
		EndDate:         b.EndDate,
		TotalBudget:     b.TotalBudget,
		DailyUsageLimit: b.DailyUsageLimit,
		Targeting:       b.Targeting,
	}, nil
}

func (h *Handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCampaigns(r.Context())
	if err != nil {
		h.writeError(w, r, "list campaigns", err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.campaignViews(cs))
}

func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body campaignBody
	if err := decodeJSON(r, &body); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	in, err := body.input()
	if err != nil {
		h.writeError(w, r, "create campaign", err)
		return
	}
	c, err := h.svc.CreateCampaign(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "create campaign", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newCampaignView(*c, h.now()))
}

func (h *Handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	c, err := h.svc.GetCampaign(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCampaignView(*c, h.now()))
}

func (h *Handler) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	var body campaignBody
	if err = decodeJSON(r, &body); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	in, err := body.input()
	if err != nil {
		h.writeError(w, r, "update campaign", err)
		return
	}
	c, err := h.svc.UpdateCampaign(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, "update campaign", err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCampaignView(*c, h.now()))
}

func (h *Handler) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if err = h.svc.DeleteCampaign(r.Context(), id); err != nil {
		h.writeError(w, r, "delete campaign", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
