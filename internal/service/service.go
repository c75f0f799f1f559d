package service

import (
	"context"
	"time"

	"github.com/Dan9191/bank-portal/internal/config"
	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/sirupsen/logrus"
)

// Store is the persisted-row contract the service works against.
// repository.Repository (PostgreSQL) and repository.MemoryStore implement it.
type Store interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	UpdateAccountBalance(ctx context.Context, account *models.Account) error
	SetAccountFrozen(ctx context.Context, id int64, frozen bool) error

	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id int64) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID int64) ([]*models.Transaction, error)
	UpdateTransactionDescription(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error

	CreateCard(ctx context.Context, card *models.Card) error
	GetCard(ctx context.Context, id int64) (*models.Card, error)
	ListCardsByUser(ctx context.Context, userID int64) ([]*models.Card, error)
	ListExpiredFreezes(ctx context.Context, now time.Time) ([]*models.Card, error)
	UpdateCard(ctx context.Context, card *models.Card) error
	DeleteCard(ctx context.Context, id int64) error

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID int64) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) error

	CreateGoal(ctx context.Context, goal *models.FinancialGoal) error
	GetGoal(ctx context.Context, id int64) (*models.FinancialGoal, error)
	ListGoalsByUser(ctx context.Context, userID int64) ([]*models.FinancialGoal, error)
	UpdateGoalAmount(ctx context.Context, goal *models.FinancialGoal) error
}

// Notifier produces notifications for business events
type Notifier interface {
	Emit(ctx context.Context, ev notify.Event, n *models.Notification) (*models.Notification, error)
}

// Service handles business logic
type Service struct {
	repo     Store
	notifier Notifier
	log      *logrus.Logger
	config   *config.Config
	locks    *keyedMutex
	now      func() time.Time
}

// Option customises a Service
type Option func(*Service)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService initializes a new service
func NewService(repo Store, notifier Notifier, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		config:   cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit sends a notification and swallows the failure; the triggering
// mutation has already succeeded.
func (s *Service) emit(ctx context.Context, ev notify.Event, n *models.Notification) *models.Notification {
	created, err := s.notifier.Emit(ctx, ev, n)
	if err != nil {
		s.log.WithFields(logrus.Fields{"event": ev, "user_id": n.UserID}).Errorf("Notification not recorded: %v", err)
		return nil
	}
	return created
}
