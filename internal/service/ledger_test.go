package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/Dan9191/bank-portal/internal/repository"
)

func TestApplyTransactionDeposit(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("125.50"), "salary", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Account.Balance.Equal(dec("625.50")) {
		t.Errorf("result balance %s, want 625.50", res.Account.Balance)
	}
	if got := f.balance(t); !got.Equal(dec("625.50")) {
		t.Errorf("stored balance %s, want 625.50", got)
	}

	txs := f.transactions(t)
	if len(txs) != 1 || txs[0].Type != models.TransactionDeposit || !txs[0].Amount.Equal(dec("125.50")) {
		t.Fatalf("unexpected transactions %+v", txs)
	}

	list := f.notifications(t, f.user.ID)
	if len(list) != 1 {
		t.Fatalf("expected one notification, got %d", len(list))
	}
	if list[0].Title != "New deposit Transaction" {
		t.Errorf("unexpected title %q", list[0].Title)
	}
	if res.Notification == nil || res.Notification.ID != list[0].ID {
		t.Errorf("result should carry the notification, got %+v", res.Notification)
	}
}

func TestApplyTransactionBalanceArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		txType  models.TransactionType
		amount  string
		balance string
	}{
		{"deposit", models.TransactionDeposit, "0.01", "500.01"},
		{"withdrawal", models.TransactionWithdrawal, "200", "300.00"},
		{"withdrawal below zero", models.TransactionWithdrawal, "750.25", "-250.25"},
		{"transfer is recorded only", models.TransactionTransfer, "100", "500.00"},
		{"trailing zeros", models.TransactionDeposit, "1.500", "501.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.ApplyTransaction(f.admin, f.account.ID, tt.txType, dec(tt.amount), "", time.Time{}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := f.balance(t); !got.Equal(dec(tt.balance)) {
				t.Errorf("balance %s, want %s", got, tt.balance)
			}
			if len(f.transactions(t)) != 1 {
				t.Error("expected the transaction to be recorded")
			}
		})
	}
}

func TestApplyTransactionAccumulates(t *testing.T) {
	f := newFixture(t)
	steps := []struct {
		txType models.TransactionType
		amount string
	}{
		{models.TransactionDeposit, "100"},
		{models.TransactionWithdrawal, "30.5"},
		{models.TransactionDeposit, "0.5"},
	}
	for _, s := range steps {
		if _, err := f.svc.ApplyTransaction(f.admin, f.account.ID, s.txType, dec(s.amount), "", time.Time{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := f.balance(t); !got.Equal(dec("570")) {
		t.Errorf("balance %s, want 570", got)
	}
}

func TestApplyTransactionFrozenAccount(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetAccountFrozen(f.admin, f.account.ID, true); err != nil {
		t.Fatal(err)
	}

	for _, txType := range []models.TransactionType{models.TransactionDeposit, models.TransactionWithdrawal, models.TransactionTransfer} {
		_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, txType, dec("10"), "", time.Time{})
		if !errors.Is(err, ErrAccountFrozen) {
			t.Fatalf("%s: expected ErrAccountFrozen, got %v", txType, err)
		}
	}
	if got := f.balance(t); !got.Equal(dec("500.00")) {
		t.Errorf("balance changed to %s", got)
	}
	if n := len(f.transactions(t)); n != 0 {
		t.Errorf("expected no transactions, got %d", n)
	}
	if n := len(f.notifications(t, f.user.ID)); n != 0 {
		t.Errorf("expected no notifications, got %d", n)
	}
}

func TestApplyTransactionValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name      string
		accountID int64
		txType    models.TransactionType
		amount    string
		at        time.Time
		want      error
	}{
		{"zero amount", f.account.ID, models.TransactionDeposit, "0", time.Time{}, ErrValidation},
		{"negative amount", f.account.ID, models.TransactionDeposit, "-5", time.Time{}, ErrValidation},
		{"rounds to zero", f.account.ID, models.TransactionDeposit, "0.004", time.Time{}, ErrValidation},
		{"rounds up", f.account.ID, models.TransactionDeposit, "0.006", time.Time{}, ErrValidation},
		{"sub-cent withdrawal", f.account.ID, models.TransactionWithdrawal, "1.005", time.Time{}, ErrValidation},
		{"unknown type", f.account.ID, "refund", "5", time.Time{}, ErrValidation},
		{"future timestamp", f.account.ID, models.TransactionDeposit, "5", june2025.Add(time.Hour), ErrValidation},
		{"missing account", 9999, models.TransactionDeposit, "5", time.Time{}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ApplyTransaction(f.admin, tt.accountID, tt.txType, dec(tt.amount), "", tt.at)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(f.transactions(t)) != 0 || !f.balance(t).Equal(dec("500")) {
		t.Error("rejected calls must not write")
	}

	for _, amount := range []string{"0", "0.004"} {
		var verr *ValidationError
		_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec(amount), "", time.Time{})
		if !errors.As(err, &verr) || verr.Field != "amount" {
			t.Errorf("%s: expected ValidationError on amount, got %v", amount, err)
		}
	}
}

func TestApplyTransactionDoesNotWaitForDelivery(t *testing.T) {
	f := newFixture(t)
	ch := newStallingChannel()
	f.svc.notifier = notify.NewEmitter(f.store, nil, quietLogger(), ch)

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("10"), "", time.Time{})
		first <- err
	}()
	select {
	case <-ch.entered:
	case <-time.After(time.Second):
		t.Fatal("first deposit never reached delivery")
	}

	second := make(chan error, 1)
	go func() {
		_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("5"), "", time.Time{})
		second <- err
	}()
	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second deposit: %v", err)
		}
	case <-time.After(time.Second):
		close(ch.release)
		t.Fatal("second deposit on the account waited for the first one's delivery")
	}

	close(ch.release)
	if err := <-first; err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if got := f.balance(t); !got.Equal(dec("515")) {
		t.Errorf("balance %s, want 515", got)
	}
}

func TestApplyTransactionRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ApplyTransaction(f.customer, f.account.ID, models.TransactionDeposit, dec("5"), "", time.Time{})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestApplyTransactionBackdated(t *testing.T) {
	f := newFixture(t)
	at := june2025.AddDate(0, -1, 0)
	res, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("1"), "", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Transaction.CreatedAt.Equal(at) {
		t.Errorf("created_at %s, want %s", res.Transaction.CreatedAt, at)
	}
}

func TestApplyTransactionRecordFailure(t *testing.T) {
	f := newFixture(t)
	f.store.failCreateTx = true

	_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("10"), "", time.Time{})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if got := f.balance(t); !got.Equal(dec("500")) {
		t.Errorf("balance must not move when the record fails, got %s", got)
	}
}

func TestApplyTransactionBalanceFailureLeavesRecord(t *testing.T) {
	f := newFixture(t)
	f.store.failBalance = repository.ErrVersionConflict

	_, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("10"), "", time.Time{})
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, ErrStaleAccount) {
		t.Fatalf("expected stale persistence error, got %v", err)
	}
	if n := len(f.transactions(t)); n != 1 {
		t.Errorf("transaction row stays without compensation, got %d rows", n)
	}
	if got := f.balance(t); !got.Equal(dec("500")) {
		t.Errorf("balance %s, want 500", got)
	}
	if n := len(f.notifications(t, f.user.ID)); n != 0 {
		t.Errorf("no notification for a failed apply, got %d", n)
	}
}

func TestApplyTransactionNotificationFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.store.failNotifications = true

	res, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionWithdrawal, dec("10"), "", time.Time{})
	if err != nil {
		t.Fatalf("notification failure must not fail the apply: %v", err)
	}
	if res.Notification != nil {
		t.Error("expected no notification in result")
	}
	if got := f.balance(t); !got.Equal(dec("490")) {
		t.Errorf("balance %s, want 490", got)
	}
}

func TestEditTransaction(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("100"), "first", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Transaction.ID

	desc := "rent refund"
	tx, err := f.svc.EditTransaction(f.admin, id, models.TransactionPatch{Description: &desc})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Description != "rent refund" || !tx.Amount.Equal(dec("100")) {
		t.Errorf("unexpected transaction %+v", tx)
	}

	amount := dec("1")
	txType := models.TransactionWithdrawal
	at := june2025
	rejected := []models.TransactionPatch{
		{Description: &desc, Amount: &amount},
		{Type: &txType},
		{CreatedAt: &at},
		{},
	}
	for i, p := range rejected {
		if _, err := f.svc.EditTransaction(f.admin, id, p); !errors.Is(err, ErrValidation) {
			t.Errorf("patch %d: expected ErrValidation, got %v", i, err)
		}
	}

	if got := f.balance(t); !got.Equal(dec("600")) {
		t.Errorf("edit must not touch balance, got %s", got)
	}
	stored, _ := f.store.GetTransaction(f.admin, id)
	if !stored.Amount.Equal(dec("100")) || stored.Type != models.TransactionDeposit {
		t.Errorf("immutable fields changed: %+v", stored)
	}

	if _, err := f.svc.EditTransaction(f.admin, 424242, models.TransactionPatch{Description: &desc}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.EditTransaction(f.customer, id, models.TransactionPatch{Description: &desc}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestDeleteTransactionKeepsBalance(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ApplyTransaction(f.admin, f.account.ID, models.TransactionDeposit, dec("100"), "", time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.DeleteTransaction(f.admin, res.Transaction.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.transactions(t)) != 0 {
		t.Error("transaction should be gone")
	}
	if got := f.balance(t); !got.Equal(dec("600")) {
		t.Errorf("delete must not reverse the balance, got %s", got)
	}
	if err := f.svc.DeleteTransaction(f.admin, res.Transaction.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReconcileAccount(t *testing.T) {
	f := newFixture(t)
	for _, step := range []struct {
		txType models.TransactionType
		amount string
	}{
		{models.TransactionDeposit, "100"},
		{models.TransactionWithdrawal, "40"},
		{models.TransactionTransfer, "5"},
	} {
		if _, err := f.svc.ApplyTransaction(f.admin, f.account.ID, step.txType, dec(step.amount), "", time.Time{}); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := f.svc.ReconcileAccount(f.admin, f.account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.OpeningBalance.Equal(dec("500")) || !rec.StoredBalance.Equal(dec("560")) || !rec.LedgerBalance.Equal(dec("560")) || !rec.Drift.IsZero() {
		t.Errorf("unexpected reconciliation %+v", rec)
	}
	if rec.Transfers != 1 {
		t.Errorf("expected 1 transfer, got %d", rec.Transfers)
	}

	if _, err := f.svc.ReconcileAccount(f.customer, f.account.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestReconcileFreshAccount(t *testing.T) {
	f := newFixture(t)
	acc, err := f.svc.CreateAccount(f.admin, f.other.ID, "", dec("500"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := f.svc.ReconcileAccount(f.admin, acc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Drift.IsZero() || !rec.LedgerBalance.Equal(dec("500")) {
		t.Errorf("fresh account must not drift: %+v", rec)
	}

	res, err := f.svc.ApplyTransaction(f.admin, acc.ID, models.TransactionWithdrawal, dec("20"), "", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteTransaction(f.admin, res.Transaction.ID); err != nil {
		t.Fatal(err)
	}
	rec, err = f.svc.ReconcileAccount(f.admin, acc.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Drift.Equal(dec("-20")) {
		t.Errorf("deleted withdrawal should show as -20 drift, got %s", rec.Drift)
	}
}

func TestGetAccountOwnership(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetAccount(f.customer, f.account.ID); err != nil {
		t.Errorf("owner must read own account: %v", err)
	}
	otherCtx := WithActor(f.admin, Actor{UserID: f.other.ID, Role: models.RoleCustomer})
	if _, err := f.svc.GetAccount(otherCtx, f.account.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.ListTransactions(otherCtx, f.account.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateAndFreezeAccount(t *testing.T) {
	f := newFixture(t)
	acc, err := f.svc.CreateAccount(f.admin, f.other.ID, "usd", dec("0"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acc.Currency != "USD" || !acc.IsActive || acc.Version != 1 {
		t.Errorf("unexpected account %+v", acc)
	}
	if !acc.OpeningBalance.IsZero() {
		t.Errorf("opening balance %s, want 0", acc.OpeningBalance)
	}
	for _, opening := range []string{"-1", "10.001"} {
		if _, err := f.svc.CreateAccount(f.admin, f.other.ID, "", dec(opening)); !errors.Is(err, ErrValidation) {
			t.Errorf("opening %s: expected ErrValidation, got %v", opening, err)
		}
	}
	if _, err := f.svc.CreateAccount(f.admin, 9999, "", dec("0")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	frozen, err := f.svc.SetAccountFrozen(f.admin, acc.ID, true)
	if err != nil || !frozen.IsFrozen {
		t.Fatalf("freeze failed: %v %+v", err, frozen)
	}
	if _, err := f.svc.ApplyTransaction(f.admin, acc.ID, models.TransactionDeposit, dec("1"), "", time.Time{}); !errors.Is(err, ErrAccountFrozen) {
		t.Errorf("expected ErrAccountFrozen, got %v", err)
	}
	if _, err := f.svc.SetAccountFrozen(f.admin, acc.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ApplyTransaction(f.admin, acc.ID, models.TransactionDeposit, dec("1"), "", time.Time{}); err != nil {
		t.Errorf("unfrozen account must accept transactions: %v", err)
	}
}
