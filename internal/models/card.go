package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CardType is the product type of a card
type CardType string

const (
	CardDebit  CardType = "debit"
	CardCredit CardType = "credit"
)

// Card represents a bank card
type Card struct {
	ID                   int64            `json:"id"`
	UserID               int64            `json:"user_id"`
	AccountID            int64            `json:"account_id"`
	CardNumber           string           `json:"-"` // plain number, masked on display
	CardType             CardType         `json:"card_type"`
	ExpiryDate           string           `json:"expiry_date"` // MM/YY
	CVVHash              string           `json:"-"`
	HMAC                 string           `json:"-"`
	CardHolderName       string           `json:"card_holder_name"`
	IsActive             bool             `json:"is_active"`
	DailyLimit           *decimal.Decimal `json:"daily_limit,omitempty"`
	TransactionLimit     *decimal.Decimal `json:"transaction_limit,omitempty"`
	IsFrozen             bool             `json:"is_frozen"`
	FreezeUntil          *time.Time       `json:"freeze_until,omitempty"`
	NotificationsEnabled bool             `json:"notifications_enabled"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Last4 returns the last four digits of the card number.
func (c *Card) Last4() string {
	if len(c.CardNumber) < 4 {
		return c.CardNumber
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}

// CardView is the display form of a card with the number masked
type CardView struct {
	*Card
	MaskedNumber string `json:"card_number"`
}

// IssuedCard is returned once, at issue time, with the full number and CVV
type IssuedCard struct {
	*Card
	CardNumber string `json:"card_number"`
	CVV        string `json:"cvv"`
}

// CardLimits is a limit update; nil leaves the current value in place
type CardLimits struct {
	DailyLimit       *decimal.Decimal `json:"daily_limit,omitempty"`
	TransactionLimit *decimal.Decimal `json:"transaction_limit,omitempty"`
}
