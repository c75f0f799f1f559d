package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the bank schema if it does not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func expectOne(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO bank.users (email, full_name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Email, user.FullName, user.Role, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = `id, email, full_name, role, password_hash, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.PasswordHash, &user.CreatedAt)
	return user, err
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM bank.users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find user")
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM bank.users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, notFound(err, "find user")
	}
	return user, nil
}

// CreateAccount creates a new account in the database
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO bank.accounts (user_id, balance, opening_balance, currency, is_frozen, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, version, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, account.UserID, account.Balance, account.OpeningBalance, account.Currency, account.IsFrozen, account.IsActive).
		Scan(&account.ID, &account.Version, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by id
func (r *Repository) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT id, user_id, balance, opening_balance, currency, is_frozen, is_active, version, created_at, updated_at
		FROM bank.accounts
		WHERE id = $1`
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.UserID, &a.Balance, &a.OpeningBalance, &a.Currency, &a.IsFrozen, &a.IsActive, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "find account")
	}
	return a, nil
}

// UpdateAccountBalance writes the balance only if the row still carries
// account.Version. A missing row is ErrNotFound, a moved version ErrVersionConflict.
func (r *Repository) UpdateAccountBalance(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE bank.accounts
		SET balance = $3, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`
	err := r.db.QueryRowContext(ctx, query, account.ID, account.Version, account.Balance).
		Scan(&account.Version, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetAccount(ctx, account.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}
	return nil
}

// SetAccountFrozen flips the frozen flag of an account
func (r *Repository) SetAccountFrozen(ctx context.Context, id int64, frozen bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank.accounts SET is_frozen = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id, frozen)
	return expectOne(res, err, "freeze account")
}

// CreateTransaction records a transaction; a zero CreatedAt means now
func (r *Repository) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO bank.transactions (account_id, amount, transaction_type, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, CURRENT_TIMESTAMP), CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	var createdAt sql.NullTime
	if !tx.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: tx.CreatedAt, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query, tx.AccountID, tx.Amount, string(tx.Type), tx.Description, createdAt).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, account_id, amount, transaction_type, description, created_at, updated_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// GetTransaction retrieves a transaction by id
func (r *Repository) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bank.transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find transaction")
	}
	return t, nil
}

// ListTransactions returns the account's transactions, newest first
func (r *Repository) ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM bank.transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	out := []*models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransactionDescription changes only the description column
func (r *Repository) UpdateTransactionDescription(ctx context.Context, tx *models.Transaction) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE bank.transactions SET description = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`, tx.ID, tx.Description).Scan(&tx.UpdatedAt)
	if err != nil {
		return notFound(err, "update transaction")
	}
	return nil
}

// DeleteTransaction removes a transaction row
func (r *Repository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bank.transactions WHERE id = $1`, id)
	return expectOne(res, err, "delete transaction")
}

// CreateCard stores a card; the number is expected to be encrypted already
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO bank.cards (user_id, account_id, card_number, card_type, expiry_date, cvv_hash, hmac,
			card_holder_name, is_active, daily_limit, transaction_limit, is_frozen, freeze_until,
			notifications_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		card.UserID, card.AccountID, card.CardNumber, string(card.CardType), card.ExpiryDate, card.CVVHash, card.HMAC,
		card.CardHolderName, card.IsActive, nullDecimal(card.DailyLimit), nullDecimal(card.TransactionLimit),
		card.IsFrozen, nullTime(card.FreezeUntil), card.NotificationsEnabled,
	).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

const cardColumns = `id, user_id, account_id, card_number, card_type, expiry_date, cvv_hash, hmac, card_holder_name,
	is_active, daily_limit, transaction_limit, is_frozen, freeze_until, notifications_enabled, created_at, updated_at`

func scanCard(row rowScanner) (*models.Card, error) {
	c := &models.Card{}
	var daily, perTx decimal.NullDecimal
	var until sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.AccountID, &c.CardNumber, &c.CardType, &c.ExpiryDate, &c.CVVHash, &c.HMAC,
		&c.CardHolderName, &c.IsActive, &daily, &perTx, &c.IsFrozen, &until, &c.NotificationsEnabled,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if daily.Valid {
		c.DailyLimit = &daily.Decimal
	}
	if perTx.Valid {
		c.TransactionLimit = &perTx.Decimal
	}
	if until.Valid {
		c.FreezeUntil = &until.Time
	}
	return c, nil
}

func (r *Repository) listCards(ctx context.Context, where string, args ...any) ([]*models.Card, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM bank.cards WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	out := []*models.Card{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCard retrieves a card by id
func (r *Repository) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	c, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM bank.cards WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find card")
	}
	return c, nil
}

// ListCardsByUser returns every card owned by the user
func (r *Repository) ListCardsByUser(ctx context.Context, userID int64) ([]*models.Card, error) {
	return r.listCards(ctx, `user_id = $1`, userID)
}

// ListExpiredFreezes returns frozen cards whose freeze_until has passed
func (r *Repository) ListExpiredFreezes(ctx context.Context, now time.Time) ([]*models.Card, error) {
	return r.listCards(ctx, `is_frozen AND freeze_until IS NOT NULL AND freeze_until <= $1`, now)
}

// UpdateCard persists the mutable card fields
func (r *Repository) UpdateCard(ctx context.Context, card *models.Card) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE bank.cards
		SET is_active = $2, daily_limit = $3, transaction_limit = $4, is_frozen = $5, freeze_until = $6,
			notifications_enabled = $7, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`,
		card.ID, card.IsActive, nullDecimal(card.DailyLimit), nullDecimal(card.TransactionLimit),
		card.IsFrozen, nullTime(card.FreezeUntil), card.NotificationsEnabled,
	).Scan(&card.UpdatedAt)
	if err != nil {
		return notFound(err, "update card")
	}
	return nil
}

// DeleteCard removes a card row
func (r *Repository) DeleteCard(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bank.cards WHERE id = $1`, id)
	return expectOne(res, err, "delete card")
}

// CreateNotification appends a notification
func (r *Repository) CreateNotification(ctx context.Context, n *models.Notification) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO bank.notifications (user_id, title, message, type, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, CURRENT_TIMESTAMP)
		RETURNING id, created_at`, n.UserID, n.Title, n.Message, string(n.Type)).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

const notificationColumns = `id, user_id, title, message, type, is_read, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt)
	return n, err
}

// GetNotification retrieves a notification by id
func (r *Repository) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM bank.notifications WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find notification")
	}
	return n, nil
}

// ListNotifications returns the user's notifications, newest first
func (r *Repository) ListNotifications(ctx context.Context, userID int64) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM bank.notifications WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead sets is_read; it never clears it
func (r *Repository) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bank.notifications SET is_read = TRUE WHERE id = $1`, id)
	return expectOne(res, err, "mark notification read")
}

// DeleteNotification removes a notification row
func (r *Repository) DeleteNotification(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bank.notifications WHERE id = $1`, id)
	return expectOne(res, err, "delete notification")
}

// CreateGoal stores a new financial goal
func (r *Repository) CreateGoal(ctx context.Context, goal *models.FinancialGoal) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO bank.financial_goals (user_id, name, target_amount, current_amount, deadline, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`,
		goal.UserID, goal.Name, goal.TargetAmount, goal.CurrentAmount, nullTime(goal.Deadline), goal.IsActive,
	).Scan(&goal.ID, &goal.CreatedAt, &goal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

const goalColumns = `id, user_id, name, target_amount, current_amount, deadline, is_active, created_at, updated_at`

func scanGoal(row rowScanner) (*models.FinancialGoal, error) {
	g := &models.FinancialGoal{}
	var deadline sql.NullTime
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &deadline, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		g.Deadline = &deadline.Time
	}
	return g, nil
}

// GetGoal retrieves a goal by id
func (r *Repository) GetGoal(ctx context.Context, id int64) (*models.FinancialGoal, error) {
	g, err := scanGoal(r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM bank.financial_goals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "find goal")
	}
	return g, nil
}

// ListGoalsByUser returns the user's goals
func (r *Repository) ListGoalsByUser(ctx context.Context, userID int64) ([]*models.FinancialGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM bank.financial_goals WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	out := []*models.FinancialGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateGoalAmount writes current_amount
func (r *Repository) UpdateGoalAmount(ctx context.Context, goal *models.FinancialGoal) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE bank.financial_goals SET current_amount = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`, goal.ID, goal.CurrentAmount).Scan(&goal.UpdatedAt)
	if err != nil {
		return notFound(err, "update goal")
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
