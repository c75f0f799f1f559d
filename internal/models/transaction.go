package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of monetary movement recorded against an account
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionTransfer   TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionDeposit, TransactionWithdrawal, TransactionTransfer:
		return true
	}
	return false
}

// Transaction represents a financial transaction
type Transaction struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"transaction_type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TransactionPatch carries an edit request for an existing transaction.
// Only Description may be applied; the other fields exist so that
// attempts to change them can be detected and rejected.
type TransactionPatch struct {
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        *TransactionType `json:"transaction_type,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
}
