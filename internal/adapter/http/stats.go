package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"campaign-discounts/internal/core/port"
)

type statsView struct {
	From          time.Time   `json:"from"`
	To            time.Time   `json:"to"`
	CampaignID    *int64      `json:"campaign_id,omitempty"`
	Redemptions   int64       `json:"redemptions"`
	DiscountTotal json.Number `json:"discount_total"`
}

// handleStatsOverview returns aggregated redemptions over a specified
// period. It accepts optional `from`, `to` (RFC3339 timestamps) and
// `campaign_id` query parameters. If no period is provided, it defaults to
// the last 24 hours. Invalid parameters result in HTTP 400.
func (h *Handler) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	var (
		q       = r.URL.Query()
		fromStr = q.Get("from")
		toStr   = q.Get("to")
		now     = h.now()
		req     port.StatsReq
		err     error
	)

	if fromStr != "" {
		req.From, err = parseQueryTime(fromStr)
		if err != nil {
			h.badRequest(w, "invalid 'from' timestamp")
			return
		}
	} else {
		req.From = now.Add(-24 * time.Hour)
	}

	if toStr != "" {
		req.To, err = parseQueryTime(toStr)
		if err != nil {
			h.badRequest(w, "invalid 'to' timestamp")
			return
		}
	} else {
		req.To = now
	}

	if cid := q.Get("campaign_id"); cid != "" {
		id, err := strconv.ParseInt(cid, 10, 64)
		if err != nil {
			h.badRequest(w, "invalid campaign_id")
			return
		}
		req.CampaignID = &id
	}

	stats, err := h.svc.GetStats(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "stats", err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsView{
		From:          req.From,
		To:            req.To,
		CampaignID:    req.CampaignID,
		Redemptions:   stats.Redemptions,
		DiscountTotal: money(stats.DiscountTotal),
	})
}
