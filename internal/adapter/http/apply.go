package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"campaign-discounts/internal/core/port"
)

type applyBody struct {
	CampaignID  int64           `json:"campaign_id"`
	CustomerID  int64           `json:"customer_id"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
}

type applyView struct {
	RedemptionID    string      `json:"redemption_id"`
	CampaignID      int64       `json:"campaign_id"`
	CustomerID      int64       `json:"customer_id"`
	Subtotal        json.Number `json:"subtotal"`
	DeliveryFee     json.Number `json:"delivery_fee"`
	DiscountApplied json.Number `json:"discount_applied"`
	Total           json.Number `json:"total"`
}

// handleApplyDiscount prices an order with a campaign. Limit overruns map
// to 429, budget and eligibility rejections to 409.
func (h *Handler) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var body applyBody
	if err := decodeJSON(r, &body); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	resp, err := h.svc.ApplyDiscount(r.Context(), port.ApplyReq{
		CampaignID:  body.CampaignID,
		CustomerID:  body.CustomerID,
		Subtotal:    body.Subtotal,
		DeliveryFee: body.DeliveryFee,
	})
	if err != nil {
		h.writeError(w, r, "apply discount", err)
		return
	}
	h.writeJSON(w, http.StatusOK, applyView{
		RedemptionID:    resp.RedemptionID,
		CampaignID:      body.CampaignID,
		CustomerID:      body.CustomerID,
		Subtotal:        money(resp.Subtotal),
		DeliveryFee:     money(resp.DeliveryFee),
		DiscountApplied: money(resp.DiscountApplied),
		Total:           money(resp.Total),
	})
}
