package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
)

// MemoryStore keeps every table in maps guarded by one mutex.
// Values are copied on the way in and out so callers never alias stored rows.
type MemoryStore struct {
	mu sync.RWMutex

	nextID int64

	users         map[int64]*models.User
	accounts      map[int64]*models.Account
	transactions  map[int64]*models.Transaction
	cards         map[int64]*models.Card
	notifications map[int64]*models.Notification
	goals         map[int64]*models.FinancialGoal

	now func() time.Time
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[int64]*models.User),
		accounts:      make(map[int64]*models.Account),
		transactions:  make(map[int64]*models.Transaction),
		cards:         make(map[int64]*models.Card),
		notifications: make(map[int64]*models.Notification),
		goals:         make(map[int64]*models.FinancialGoal),
		now:           time.Now,
	}
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser stores a new user; emails are unique case-insensitively.
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	user.ID = m.id()
	user.CreatedAt = m.now()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	account.ID = m.id()
	account.Version = 1
	account.CreatedAt, account.UpdatedAt = now, now
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// UpdateAccountBalance writes account.Balance if the stored version still
// equals account.Version, then advances the version.
func (m *MemoryStore) UpdateAccountBalance(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[account.ID]
	if !ok {
		return ErrNotFound
	}
	if a.Version != account.Version {
		return ErrVersionConflict
	}
	a.Balance = account.Balance
	a.Version++
	a.UpdatedAt = m.now()
	account.Version, account.UpdatedAt = a.Version, a.UpdatedAt
	return nil
}

// SetAccountFrozen flips the frozen flag; used by admin tooling and tests.
func (m *MemoryStore) SetAccountFrozen(ctx context.Context, id int64, frozen bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.IsFrozen = frozen
	a.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.ID = m.id()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.now()
	}
	tx.UpdatedAt = m.now()
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ListTransactions returns the account's transactions, newest first.
func (m *MemoryStore) ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Transaction{}
	for _, t := range m.transactions {
		if t.AccountID == accountID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateTransactionDescription(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[tx.ID]
	if !ok {
		return ErrNotFound
	}
	t.Description = tx.Description
	t.UpdatedAt = m.now()
	tx.UpdatedAt = t.UpdatedAt
	return nil
}

func (m *MemoryStore) DeleteTransaction(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, id)
	return nil
}

func (m *MemoryStore) CreateCard(ctx context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	card.ID = m.id()
	card.CreatedAt, card.UpdatedAt = now, now
	m.cards[card.ID] = copyCard(card)
	return nil
}

func (m *MemoryStore) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCard(c), nil
}

func (m *MemoryStore) ListCardsByUser(ctx context.Context, userID int64) ([]*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Card{}
	for _, c := range m.cards {
		if c.UserID == userID {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListExpiredFreezes returns frozen cards whose freeze_until is at or before now.
func (m *MemoryStore) ListExpiredFreezes(ctx context.Context, now time.Time) ([]*models.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Card{}
	for _, c := range m.cards {
		if c.IsFrozen && c.FreezeUntil != nil && !c.FreezeUntil.After(now) {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateCard persists the mutable card fields.
func (m *MemoryStore) UpdateCard(ctx context.Context, card *models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[card.ID]
	if !ok {
		return ErrNotFound
	}
	card.UpdatedAt = m.now()
	updated := copyCard(card)
	updated.CardNumber, updated.CVVHash, updated.HMAC = c.CardNumber, c.CVVHash, c.HMAC
	updated.CreatedAt = c.CreatedAt
	m.cards[card.ID] = updated
	return nil
}

func (m *MemoryStore) DeleteCard(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

func (m *MemoryStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.id()
	n.CreatedAt = m.now()
	cp := *n
	m.notifications[n.ID] = &cp
	return nil
}

func (m *MemoryStore) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

// ListNotifications returns the user's notifications, newest first.
func (m *MemoryStore) ListNotifications(ctx context.Context, userID int64) ([]*models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Notification{}
	for _, n := range m.notifications {
		if n.UserID == userID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MemoryStore) MarkNotificationRead(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (m *MemoryStore) DeleteNotification(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[id]; !ok {
		return ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

func (m *MemoryStore) CreateGoal(ctx context.Context, goal *models.FinancialGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	goal.ID = m.id()
	goal.CreatedAt, goal.UpdatedAt = now, now
	cp := *goal
	m.goals[goal.ID] = &cp
	return nil
}

func (m *MemoryStore) GetGoal(ctx context.Context, id int64) (*models.FinancialGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MemoryStore) ListGoalsByUser(ctx context.Context, userID int64) ([]*models.FinancialGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.FinancialGoal{}
	for _, g := range m.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpdateGoalAmount(ctx context.Context, goal *models.FinancialGoal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[goal.ID]
	if !ok {
		return ErrNotFound
	}
	g.CurrentAmount = goal.CurrentAmount
	g.UpdatedAt = m.now()
	goal.UpdatedAt = g.UpdatedAt
	return nil
}

func copyCard(c *models.Card) *models.Card {
	cp := *c
	if c.DailyLimit != nil {
		v := *c.DailyLimit
		cp.DailyLimit = &v
	}
	if c.TransactionLimit != nil {
		v := *c.TransactionLimit
		cp.TransactionLimit = &v
	}
	if c.FreezeUntil != nil {
		v := *c.FreezeUntil
		cp.FreezeUntil = &v
	}
	return &cp
}
