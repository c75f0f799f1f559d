package models

import "github.com/shopspring/decimal"

// BalanceReconciliation compares the stored balance with the one implied
// by the transaction log (opening balance plus deposits minus withdrawals).
type BalanceReconciliation struct {
	AccountID      int64           `json:"account_id"`
	StoredBalance  decimal.Decimal `json:"stored_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance"`
	Deposits       decimal.Decimal `json:"deposits"`
	Withdrawals    decimal.Decimal `json:"withdrawals"`
	Transfers      int             `json:"transfers"`
	Drift          decimal.Decimal `json:"drift"` // StoredBalance - LedgerBalance
}
