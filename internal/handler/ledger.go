package handler

import (
	"net/http"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	UserID   int64           `json:"user_id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

// CreateAccount opens an account for a user
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.svc.CreateAccount(r.Context(), req.UserID, req.Currency, req.Balance)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// GetAccount returns one account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type freezeAccountRequest struct {
	Frozen *bool `json:"is_frozen"`
}

// SetAccountFrozen freezes or unfreezes an account
func (h *Handler) SetAccountFrozen(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req freezeAccountRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Frozen == nil {
		h.writeError(w, r, required("is_frozen"))
		return
	}
	account, err := h.svc.SetAccountFrozen(r.Context(), id, *req.Frozen)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type applyTransactionRequest struct {
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"transaction_type"`
	Description string                 `json:"description"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
}

// ApplyTransaction records a transaction and moves the balance
func (h *Handler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req applyTransactionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	var at time.Time
	if req.CreatedAt != nil {
		at = *req.CreatedAt
	}
	res, err := h.svc.ApplyTransaction(r.Context(), id, req.Type, req.Amount, req.Description, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListTransactions returns the transactions of an account
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	txs, err := h.svc.ListTransactions(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// ReconcileAccount reports drift between the balance and the transaction log
func (h *Handler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	rec, err := h.svc.ReconcileAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// EditTransaction updates the description of a transaction
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch models.TransactionPatch
	if err := decode(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.svc.EditTransaction(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DeleteTransaction removes a transaction record
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteTransaction(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
