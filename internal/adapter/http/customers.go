package httpadapter

import (
	"net/http"
	"time"

	"campaign-discounts/internal/core/port"
)

type customerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type customerView struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var body customerBody
	if err := decodeJSON(r, &body); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), port.CustomerInput{Username: body.Username, Email: body.Email})
	if err != nil {
		h.writeError(w, r, "create customer", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, customerView{ID: c.ID, Username: c.Username, Email: c.Email, CreatedAt: c.CreatedAt})
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	c, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get customer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, customerView{ID: c.ID, Username: c.Username, Email: c.Email, CreatedAt: c.CreatedAt})
}
