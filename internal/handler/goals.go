package handler

import (
	"net/http"
	"time"

	"github.com/Dan9191/bank-portal/internal/service"
	"github.com/shopspring/decimal"
)

type createGoalRequest struct {
	UserID       int64           `json:"user_id"`
	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
}

// CreateGoal opens a savings goal; user_id defaults to the caller
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserID == 0 {
		if actor, ok := service.ActorFrom(r.Context()); ok {
			req.UserID = actor.UserID
		}
	}
	goal, err := h.svc.CreateGoal(r.Context(), req.UserID, req.Name, req.TargetAmount, req.Deadline)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

// ListGoals returns a user's goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	goals, err := h.svc.ListGoals(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

type contributionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Contribute adds money to a goal
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req contributionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	goal, err := h.svc.Contribute(r.Context(), id, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
