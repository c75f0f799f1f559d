package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a customer account holding a single balance.
// Version is bumped on every balance write and guards concurrent overwrites.
// OpeningBalance is set once at creation and never changes.
type Account struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Currency       string          `json:"currency"`
	IsFrozen       bool            `json:"is_frozen"`
	IsActive       bool            `json:"is_active"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
