package httpadapter

import (
	"net/http"
	"strconv"

	"campaign-discounts/internal/core/domain"
	"campaign-discounts/internal/core/port"
)

// handleEligible lists the campaigns usable right now, or at the RFC3339
// instant given by `at`. Optional `discount_type` and `customer_id`
// narrow the result. An unknown customer is a 400, never an empty list.
func (h *Handler) handleEligible(w http.ResponseWriter, r *http.Request) {
	var (
		q   = r.URL.Query()
		req port.EligibleReq
		err error
	)

	if at := q.Get("at"); at != "" {
		req.At, err = parseQueryTime(at)
		if err != nil {
			h.badRequest(w, "invalid 'at' timestamp")
			return
		}
	} else {
		req.At = h.now()
	}

	if dt := q.Get("discount_type"); dt != "" {
		t, err := domain.ParseDiscountType(dt)
		if err != nil {
			h.badRequest(w, err.Error())
			return
		}
		req.DiscountType = &t
	}

	if cid := q.Get("customer_id"); cid != "" {
		id, err := strconv.ParseInt(cid, 10, 64)
		if err != nil {
			h.badRequest(w, "invalid customer_id")
			return
		}
		req.CustomerID = &id
	}

	cs, err := h.svc.ListEligible(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "list eligible", err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.campaignViews(cs))
}
