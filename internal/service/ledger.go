package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LedgerResult is the outcome of a successfully applied transaction
type LedgerResult struct {
	Transaction  *models.Transaction  `json:"transaction"`
	Account      *models.Account      `json:"account"`
	Notification *models.Notification `json:"notification,omitempty"`
}

func accountKey(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}

// nextBalance derives the balance after applying amount with txType.
// Withdrawals may go negative; transfers are recorded without moving funds.
func nextBalance(balance decimal.Decimal, txType models.TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch txType {
	case models.TransactionDeposit:
		return balance.Add(amount)
	case models.TransactionWithdrawal:
		return balance.Sub(amount)
	default:
		return balance
	}
}

// CreateAccount opens an account for userID. Admin only.
func (s *Service) CreateAccount(ctx context.Context, userID int64, currency string, opening decimal.Decimal) (*models.Account, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if opening.IsNegative() {
		return nil, invalid("balance", "opening balance cannot be negative")
	}
	if err := moneyScale("balance", opening); err != nil {
		return nil, err
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "RUB"
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, storeErr("load user", err)
	}

	account := &models.Account{
		UserID:         userID,
		Balance:        opening,
		OpeningBalance: opening,
		Currency:       currency,
		IsActive:       true,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, storeErr("create account", err)
	}

	s.log.Infof("Account created for user %d: %s", userID, account.Currency)
	return account, nil
}

// GetAccount returns an account to its owner or an admin
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	if _, err := requireOwnerOrAdmin(ctx, account.UserID); err != nil {
		return nil, err
	}
	return account, nil
}

// SetAccountFrozen freezes or unfreezes an account. Admin only.
func (s *Service) SetAccountFrozen(ctx context.Context, accountID int64, frozen bool) (*models.Account, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(accountKey(accountID))
	defer unlock()

	if err := s.repo.SetAccountFrozen(ctx, accountID, frozen); err != nil {
		return nil, storeErr("freeze account", err)
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	s.log.WithField("account_id", accountID).Infof("Account frozen=%t", frozen)
	return account, nil
}

// ApplyTransaction records a transaction against an account and writes the
// derived balance. Admin only.
//
// Validation, ownership and the frozen check happen before any write. The
// transaction row is written first; if the balance write then fails the row
// stays and the error is returned (no compensation). A failed notification
// never fails the call. occurredAt may be zero (now) or in the past.
func (s *Service) ApplyTransaction(ctx context.Context, accountID int64, txType models.TransactionType, amount decimal.Decimal, description string, occurredAt time.Time) (*LedgerResult, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if !txType.Valid() {
		return nil, invalid("transaction_type", fmt.Sprintf("unknown type %q", txType))
	}
	if err := positiveMoney("amount", amount); err != nil {
		return nil, err
	}
	now := s.now()
	if occurredAt.After(now) {
		return nil, invalid("created_at", "cannot be in the future")
	}

	tx, account, err := s.applyLocked(ctx, accountID, txType, amount, description, occurredAt)
	if err != nil {
		return nil, err
	}

	// notify after the account lock is released
	n := s.emit(ctx, notify.EventTransactionApplied, notify.TransactionApplied(account.UserID, tx))
	return &LedgerResult{Transaction: tx, Account: account, Notification: n}, nil
}

// applyLocked performs the frozen check, the record write and the balance
// write while holding the account lock.
func (s *Service) applyLocked(ctx context.Context, accountID int64, txType models.TransactionType, amount decimal.Decimal, description string, occurredAt time.Time) (*models.Transaction, *models.Account, error) {
	unlock := s.locks.Lock(accountKey(accountID))
	defer unlock()

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, storeErr("load account", err)
	}
	if account.IsFrozen {
		return nil, nil, fmt.Errorf("account %d: %w", accountID, ErrAccountFrozen)
	}

	newBalance := nextBalance(account.Balance, txType, amount)

	tx := &models.Transaction{
		AccountID:   accountID,
		Amount:      amount,
		Type:        txType,
		Description: strings.TrimSpace(description),
		CreatedAt:   occurredAt,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, nil, storeErr("record transaction", err)
	}

	fields := logrus.Fields{"account_id": accountID, "transaction_id": tx.ID, "type": txType, "amount": amount.String()}

	// Transfers keep the balance, so there is no write and Version stays as is.
	if !newBalance.Equal(account.Balance) {
		account.Balance = newBalance
		if err := s.repo.UpdateAccountBalance(ctx, account); err != nil {
			s.log.WithFields(fields).Errorf("Transaction recorded but balance not updated: %v", err)
			return nil, nil, storeErr("update balance", err)
		}
	}

	s.log.WithFields(fields).Infof("Transaction applied, balance %s", account.Balance.StringFixed(2))
	return tx, account, nil
}

// EditTransaction changes the description of a transaction. Amount, type
// and timestamp are immutable and rejected when present. The account
// balance is never touched. Admin only.
func (s *Service) EditTransaction(ctx context.Context, transactionID int64, patch models.TransactionPatch) (*models.Transaction, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	switch {
	case patch.Amount != nil:
		return nil, invalid("amount", "cannot be changed after creation")
	case patch.Type != nil:
		return nil, invalid("transaction_type", "cannot be changed after creation")
	case patch.CreatedAt != nil:
		return nil, invalid("created_at", "cannot be changed after creation")
	case patch.Description == nil:
		return nil, invalid("description", "is required")
	}

	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, storeErr("load transaction", err)
	}
	tx.Description = strings.TrimSpace(*patch.Description)
	if err := s.repo.UpdateTransactionDescription(ctx, tx); err != nil {
		return nil, storeErr("update transaction", err)
	}

	s.log.WithField("transaction_id", tx.ID).Info("Transaction description updated")
	return tx, nil
}

// DeleteTransaction removes the record. The balance effect is not reversed.
// Admin only.
func (s *Service) DeleteTransaction(ctx context.Context, transactionID int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return storeErr("load transaction", err)
	}
	if err := s.repo.DeleteTransaction(ctx, transactionID); err != nil {
		return storeErr("delete transaction", err)
	}

	s.log.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"account_id":     tx.AccountID,
		"type":           tx.Type,
		"amount":         tx.Amount.String(),
	}).Warn("Transaction deleted; account balance left unchanged")
	return nil
}

// ListTransactions returns the account's transactions to its owner or an admin
func (s *Service) ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	txs, err := s.repo.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return txs, nil
}

// ReconcileAccount compares the stored balance with the opening balance plus
// the transaction log. It only reads. Admin only.
func (s *Service) ReconcileAccount(ctx context.Context, accountID int64) (*models.BalanceReconciliation, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	txs, err := s.repo.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}

	rec := &models.BalanceReconciliation{
		AccountID:      accountID,
		StoredBalance:  account.Balance,
		OpeningBalance: account.OpeningBalance,
		Deposits:       decimal.Zero,
		Withdrawals:    decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionDeposit:
			rec.Deposits = rec.Deposits.Add(tx.Amount)
		case models.TransactionWithdrawal:
			rec.Withdrawals = rec.Withdrawals.Add(tx.Amount)
		case models.TransactionTransfer:
			rec.Transfers++
		}
	}
	rec.LedgerBalance = rec.OpeningBalance.Add(rec.Deposits).Sub(rec.Withdrawals)
	rec.Drift = rec.StoredBalance.Sub(rec.LedgerBalance)

	if !rec.Drift.IsZero() {
		s.log.WithFields(logrus.Fields{"account_id": accountID, "drift": rec.Drift.String()}).Warn("Account balance drifts from transaction log")
	}
	return rec, nil
}
