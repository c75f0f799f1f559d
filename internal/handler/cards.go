package handler

import (
	"net/http"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/service"
)

type issueCardRequest struct {
	UserID         int64           `json:"user_id"`
	AccountID      int64           `json:"account_id"`
	CardType       models.CardType `json:"card_type"`
	CardHolderName string          `json:"card_holder_name"`
}

// IssueCard issues a card; the only response that carries the full number and CVV
func (h *Handler) IssueCard(w http.ResponseWriter, r *http.Request) {
	var req issueCardRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.IssueCard(r.Context(), req.UserID, req.AccountID, req.CardType, req.CardHolderName)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// ListCards returns a user's cards with masked numbers
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.svc.ListCards(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

type cardStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetCardStatus activates or deactivates a card
func (h *Handler) SetCardStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cardStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.IsActive == nil {
		h.writeError(w, r, required("is_active"))
		return
	}
	card, err := h.svc.SetCardStatus(r.Context(), id, *req.IsActive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.View(card))
}

// SetCardLimits updates daily and per-transaction limits
func (h *Handler) SetCardLimits(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req models.CardLimits
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.svc.SetCardLimits(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.View(card))
}

type cardFreezeRequest struct {
	IsFrozen    *bool      `json:"is_frozen"`
	FreezeUntil *time.Time `json:"freeze_until,omitempty"`
}

// SetCardFreeze freezes or unfreezes a card
func (h *Handler) SetCardFreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cardFreezeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.IsFrozen == nil {
		h.writeError(w, r, required("is_frozen"))
		return
	}
	card, err := h.svc.SetCardFreeze(r.Context(), id, *req.IsFrozen, req.FreezeUntil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.View(card))
}

type cardNotificationsRequest struct {
	Enabled *bool `json:"notifications_enabled"`
}

// SetCardNotifications stores the card alert preference
func (h *Handler) SetCardNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cardNotificationsRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		h.writeError(w, r, required("notifications_enabled"))
		return
	}
	card, err := h.svc.SetCardNotificationsEnabled(r.Context(), id, *req.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, service.View(card))
}

// DeleteCard removes a card
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteCard(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
