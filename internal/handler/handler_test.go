package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/bank-portal/internal/config"
	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/Dan9191/bank-portal/internal/repository"
	"github.com/Dan9191/bank-portal/internal/service"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type staticRate struct {
	rate decimal.Decimal
	err  error
}

func (s staticRate) GetKeyRate(ctx context.Context) (decimal.Decimal, error) {
	return s.rate, s.err
}

type testServer struct {
	t        *testing.T
	router   *mux.Router
	admin    string
	customer string
	userID   int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{
		JWTSecret:     "test-secret",
		JWTTTL:        time.Hour,
		HMACSecret:    "test-hmac",
		EncryptionKey: []byte("0123456789abcdef"),
	}
	store := repository.NewMemoryStore()
	svc := service.NewService(store, notify.NewEmitter(store, nil, log), log, cfg)
	h := NewHandler(svc, staticRate{rate: decimal.NewFromInt(25)}, log)

	ts := &testServer{t: t, router: NewRouter(h, cfg)}

	ctx := context.Background()
	if _, err := svc.EnsureAdmin(ctx, "admin@bank.local", "adminpassword"); err != nil {
		t.Fatal(err)
	}
	var user models.User
	ts.expect(ts.do("POST", "/register", "", map[string]string{
		"email": "ann@example.com", "full_name": "Ann Lee", "password": "password123",
	}), http.StatusCreated, &user)
	ts.userID = user.ID

	ts.admin = ts.login("admin@bank.local", "adminpassword")
	ts.customer = ts.login("ann@example.com", "password123")
	return ts
}

func (ts *testServer) login(email, password string) string {
	var resp map[string]string
	ts.expect(ts.do("POST", "/login", "", map[string]string{"email": email, "password": password}), http.StatusOK, &resp)
	return resp["token"]
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ts.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) expect(rr *httptest.ResponseRecorder, status int, out any) {
	ts.t.Helper()
	if rr.Code != status {
		ts.t.Fatalf("status %d, want %d: %s", rr.Code, status, rr.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			ts.t.Fatalf("decode response: %v: %s", err, rr.Body.String())
		}
	}
}

func (ts *testServer) openAccount(balance string) int64 {
	var account models.Account
	ts.expect(ts.do("POST", "/accounts", ts.admin, map[string]any{
		"user_id": ts.userID, "currency": "RUB", "balance": balance,
	}), http.StatusCreated, &account)
	return account.ID
}

func TestPublicRoutes(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	ts.expect(ts.do("GET", "/health", "", nil), http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("unexpected health %v", health)
	}

	var rate map[string]decimal.Decimal
	ts.expect(ts.do("GET", "/key-rate", "", nil), http.StatusOK, &rate)
	if !rate["key_rate"].Equal(decimal.NewFromInt(25)) {
		t.Errorf("unexpected rate %v", rate)
	}

	ts.expect(ts.do("POST", "/login", "", map[string]string{"email": "ann@example.com", "password": "nope"}), http.StatusUnauthorized, nil)
	ts.expect(ts.do("POST", "/register", "", map[string]string{
		"email": "ann@example.com", "full_name": "Ann", "password": "password123",
	}), http.StatusConflict, nil)
	ts.expect(ts.do("POST", "/register", "", "{not json"), http.StatusBadRequest, nil)
	ts.expect(ts.do("GET", "/accounts/1", "", nil), http.StatusUnauthorized, nil)
}

func TestLedgerFlow(t *testing.T) {
	ts := newTestServer(t)
	accountID := ts.openAccount("500.00")
	txPath := fmt.Sprintf("/accounts/%d/transactions", accountID)

	var res service.LedgerResult
	ts.expect(ts.do("POST", txPath, ts.admin, map[string]any{
		"amount": "125.50", "transaction_type": "deposit", "description": "salary",
	}), http.StatusCreated, &res)
	if !res.Account.Balance.Equal(decimal.RequireFromString("625.50")) {
		t.Errorf("balance %s, want 625.50", res.Account.Balance)
	}
	if res.Notification == nil || res.Notification.Title != "New deposit Transaction" {
		t.Errorf("unexpected notification %+v", res.Notification)
	}

	// customers cannot post transactions but can read their own
	ts.expect(ts.do("POST", txPath, ts.customer, map[string]any{"amount": "1", "transaction_type": "deposit"}), http.StatusForbidden, nil)
	var txs []models.Transaction
	ts.expect(ts.do("GET", txPath, ts.customer, nil), http.StatusOK, &txs)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}

	var verr errorResponse
	ts.expect(ts.do("POST", txPath, ts.admin, map[string]any{"amount": "0", "transaction_type": "deposit"}), http.StatusBadRequest, &verr)
	if verr.Field != "amount" {
		t.Errorf("field %q, want amount", verr.Field)
	}
	verr = errorResponse{}
	ts.expect(ts.do("POST", txPath, ts.admin, map[string]any{"amount": "0.004", "transaction_type": "deposit"}), http.StatusBadRequest, &verr)
	if verr.Field != "amount" {
		t.Errorf("sub-cent amount: field %q, want amount", verr.Field)
	}

	ts.expect(ts.do("PATCH", fmt.Sprintf("/transactions/%d", txs[0].ID), ts.admin, map[string]any{"amount": "1"}), http.StatusBadRequest, nil)
	var edited models.Transaction
	ts.expect(ts.do("PATCH", fmt.Sprintf("/transactions/%d", txs[0].ID), ts.admin, map[string]any{"description": "bonus"}), http.StatusOK, &edited)
	if edited.Description != "bonus" {
		t.Errorf("description %q, want bonus", edited.Description)
	}

	ts.expect(ts.do("PUT", fmt.Sprintf("/accounts/%d/freeze", accountID), ts.admin, map[string]any{"is_frozen": true}), http.StatusOK, nil)
	ts.expect(ts.do("POST", txPath, ts.admin, map[string]any{"amount": "1", "transaction_type": "withdrawal"}), http.StatusConflict, nil)

	var account models.Account
	ts.expect(ts.do("GET", fmt.Sprintf("/accounts/%d", accountID), ts.customer, nil), http.StatusOK, &account)
	if !account.Balance.Equal(decimal.RequireFromString("625.50")) || !account.IsFrozen {
		t.Errorf("unexpected account %+v", account)
	}

	ts.expect(ts.do("DELETE", fmt.Sprintf("/transactions/%d", txs[0].ID), ts.admin, nil), http.StatusNoContent, nil)
	var rec models.BalanceReconciliation
	ts.expect(ts.do("GET", fmt.Sprintf("/accounts/%d/reconcile", accountID), ts.admin, nil), http.StatusOK, &rec)
	if !rec.OpeningBalance.Equal(decimal.RequireFromString("500")) || !rec.Drift.Equal(decimal.RequireFromString("125.50")) {
		t.Errorf("opening %s drift %s, want 500 and 125.50", rec.OpeningBalance, rec.Drift)
	}

	ts.expect(ts.do("GET", "/accounts/999", ts.admin, nil), http.StatusNotFound, nil)
	ts.expect(ts.do("GET", "/accounts/abc", ts.admin, nil), http.StatusBadRequest, nil)
}

func TestCardFlow(t *testing.T) {
	ts := newTestServer(t)
	accountID := ts.openAccount("0")

	var issued struct {
		ID         int64  `json:"id"`
		CardNumber string `json:"card_number"`
		CVV        string `json:"cvv"`
		ExpiryDate string `json:"expiry_date"`
	}
	ts.expect(ts.do("POST", "/cards", ts.admin, map[string]any{
		"user_id": ts.userID, "account_id": accountID, "card_type": "debit",
	}), http.StatusCreated, &issued)
	if len(issued.CardNumber) != 16 || len(issued.CVV) != 3 {
		t.Fatalf("unexpected issued card %+v", issued)
	}

	var cards []struct {
		CardNumber string `json:"card_number"`
		CVV        string `json:"cvv"`
	}
	ts.expect(ts.do("GET", fmt.Sprintf("/users/%d/cards", ts.userID), ts.customer, nil), http.StatusOK, &cards)
	if len(cards) != 1 || cards[0].CardNumber != "************"+issued.CardNumber[12:] || cards[0].CVV != "" {
		t.Fatalf("listing leaks card details: %+v", cards)
	}

	cardPath := fmt.Sprintf("/cards/%d", issued.ID)
	ts.expect(ts.do("PUT", cardPath+"/status", ts.customer, map[string]any{"is_active": false}), http.StatusForbidden, nil)
	ts.expect(ts.do("PUT", cardPath+"/status", ts.admin, map[string]any{}), http.StatusBadRequest, nil)

	var view map[string]any
	ts.expect(ts.do("PUT", cardPath+"/status", ts.admin, map[string]any{"is_active": false}), http.StatusOK, &view)
	if view["is_active"] != false || view["card_number"] != "************"+issued.CardNumber[12:] {
		t.Errorf("unexpected view %v", view)
	}

	ts.expect(ts.do("PUT", cardPath+"/limits", ts.admin, map[string]any{"daily_limit": "1000"}), http.StatusOK, nil)
	until := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	ts.expect(ts.do("PUT", cardPath+"/freeze", ts.customer, map[string]any{"is_frozen": true, "freeze_until": until}), http.StatusOK, nil)
	ts.expect(ts.do("PUT", cardPath+"/notifications", ts.customer, map[string]any{"notifications_enabled": false}), http.StatusOK, nil)

	var inbox []models.Notification
	ts.expect(ts.do("GET", "/notifications", ts.customer, nil), http.StatusOK, &inbox)
	if len(inbox) != 2 {
		t.Fatalf("expected issue and status notifications, got %d", len(inbox))
	}

	ts.expect(ts.do("DELETE", cardPath, ts.admin, nil), http.StatusNoContent, nil)
	ts.expect(ts.do("DELETE", cardPath, ts.admin, nil), http.StatusNotFound, nil)
}

func TestGoalsAndInbox(t *testing.T) {
	ts := newTestServer(t)

	var goal models.FinancialGoal
	ts.expect(ts.do("POST", "/goals", ts.customer, map[string]any{"name": "Vacation", "target_amount": "100"}), http.StatusCreated, &goal)
	if goal.UserID != ts.userID {
		t.Errorf("goal owner %d, want caller %d", goal.UserID, ts.userID)
	}

	contribute := fmt.Sprintf("/goals/%d/contributions", goal.ID)
	ts.expect(ts.do("POST", contribute, ts.customer, map[string]any{"amount": "10"}), http.StatusOK, nil)
	ts.expect(ts.do("POST", contribute, ts.customer, map[string]any{"amount": "5"}), http.StatusOK, &goal)
	if !goal.CurrentAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("current amount %s, want 15", goal.CurrentAmount)
	}
	ts.expect(ts.do("POST", contribute, ts.customer, map[string]any{"amount": "-1"}), http.StatusBadRequest, nil)

	var goals []models.FinancialGoal
	ts.expect(ts.do("GET", fmt.Sprintf("/users/%d/goals", ts.userID), ts.admin, nil), http.StatusOK, &goals)
	if len(goals) != 1 {
		t.Errorf("expected 1 goal, got %d", len(goals))
	}

	accountID := ts.openAccount("0")
	ts.expect(ts.do("POST", fmt.Sprintf("/accounts/%d/transactions", accountID), ts.admin, map[string]any{
		"amount": "3", "transaction_type": "deposit",
	}), http.StatusCreated, nil)

	var inbox []models.Notification
	ts.expect(ts.do("GET", "/notifications", ts.customer, nil), http.StatusOK, &inbox)
	if len(inbox) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(inbox))
	}
	readPath := fmt.Sprintf("/notifications/%d/read", inbox[0].ID)
	ts.expect(ts.do("POST", readPath, ts.admin, nil), http.StatusForbidden, nil)
	var n models.Notification
	ts.expect(ts.do("POST", readPath, ts.customer, nil), http.StatusOK, &n)
	if !n.IsRead {
		t.Error("notification not marked read")
	}
	ts.expect(ts.do("DELETE", fmt.Sprintf("/notifications/%d", n.ID), ts.customer, nil), http.StatusNoContent, nil)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", service.ErrAccountFrozen), http.StatusConflict},
		{&service.ValidationError{Field: "amount", Reason: "bad"}, http.StatusBadRequest},
		{service.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("x: %w: %w", service.ErrPersistence, service.ErrStaleAccount), http.StatusConflict},
		{fmt.Errorf("x: %w", service.ErrPersistence), http.StatusInternalServerError},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrConflict, http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestKeyRateUnavailable(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHandler(nil, staticRate{err: errors.New("timeout")}, log)
	rr := httptest.NewRecorder()
	h.KeyRate(rr, httptest.NewRequest("GET", "/key-rate", nil))
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", rr.Code)
	}
}
