package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/Dan9191/bank-portal/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// IssueCard creates a card on accountID for userID. The account must belong
// to the user. The holder name defaults to the user's full name. The full
// number and CVV are only ever returned here. Admin only.
func (s *Service) IssueCard(ctx context.Context, userID, accountID int64, cardType models.CardType, holderName string) (*models.IssuedCard, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if cardType == "" {
		cardType = models.CardDebit
	}
	if cardType != models.CardDebit && cardType != models.CardCredit {
		return nil, invalid("card_type", fmt.Sprintf("unknown type %q", cardType))
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, storeErr("load account", err)
	}
	if account.UserID != userID {
		return nil, invalid("account_id", "account does not belong to user")
	}

	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		user, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return nil, storeErr("load user", err)
		}
		holderName = user.FullName
	}

	cardNumber, err := utils.GenerateCardNumber(s.config.CardBIN, utils.CardNumberLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate card number: %w", err)
	}
	expiryDate := utils.GenerateExpiryDate(s.now(), utils.CardValidityYears)
	cvv, err := utils.GenerateCVV()
	if err != nil {
		return nil, fmt.Errorf("failed to generate CVV: %w", err)
	}

	cvvHash, err := bcrypt.GenerateFromPassword([]byte(cvv), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash CVV: %w", err)
	}
	encryptedNumber, err := utils.Encrypt(cardNumber, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt card number: %w", err)
	}

	card := &models.Card{
		UserID:               userID,
		AccountID:            accountID,
		CardNumber:           encryptedNumber,
		CardType:             cardType,
		ExpiryDate:           expiryDate,
		CVVHash:              string(cvvHash),
		HMAC:                 utils.GenerateHMAC(cardNumber, expiryDate, s.config.HMACSecret),
		CardHolderName:       holderName,
		IsActive:             true,
		NotificationsEnabled: true,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, storeErr("create card", err)
	}

	// Return card with decrypted number
	card.CardNumber = cardNumber
	s.log.WithFields(logrus.Fields{"card_id": card.ID, "account_id": accountID, "user_id": userID}).Info("Card issued")

	s.emit(ctx, notify.EventCardIssued, notify.CardIssued(card))
	return &models.IssuedCard{Card: card, CardNumber: cardNumber, CVV: cvv}, nil
}

// openCard decrypts the stored number and checks its integrity tag
func (s *Service) openCard(card *models.Card) (*models.Card, error) {
	number, err := utils.Decrypt(card.CardNumber, s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("card %d: %w: failed to decrypt number: %v", card.ID, ErrPersistence, err)
	}
	if !utils.VerifyHMAC(number, card.ExpiryDate, s.config.HMACSecret, card.HMAC) {
		return nil, fmt.Errorf("card %d: %w: integrity check failed", card.ID, ErrPersistence)
	}
	card.CardNumber = number
	return card, nil
}

func cardKey(id int64) string {
	return "card:" + strconv.FormatInt(id, 10)
}

func (s *Service) loadCard(ctx context.Context, cardID int64) (*models.Card, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		return nil, storeErr("load card", err)
	}
	return s.openCard(card)
}

func (s *Service) saveCard(ctx context.Context, card *models.Card) error {
	if err := s.repo.UpdateCard(ctx, card); err != nil {
		return storeErr("update card", err)
	}
	return nil
}

// View masks the number for display
func View(card *models.Card) models.CardView {
	return models.CardView{Card: card, MaskedNumber: utils.MaskCardNumber(card.CardNumber)}
}

// updateCard loads the card under its lock, applies mutate and saves the
// result. The lock is released before the caller notifies.
func (s *Service) updateCard(ctx context.Context, cardID int64, mutate func(*models.Card) error) (*models.Card, error) {
	unlock := s.locks.Lock(cardKey(cardID))
	defer unlock()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := mutate(card); err != nil {
		return nil, err
	}
	if err := s.saveCard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// SetCardStatus activates or deactivates a card and notifies the owner.
// Admin only.
func (s *Service) SetCardStatus(ctx context.Context, cardID int64, active bool) (*models.Card, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	card, err := s.updateCard(ctx, cardID, func(c *models.Card) error {
		c.IsActive = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", cardID).Infof("Card active=%t", active)
	s.emit(ctx, notify.EventCardStatusChanged, notify.CardStatusChanged(card))
	return card, nil
}

// SetCardLimits updates the limits present in limits. Admin only.
func (s *Service) SetCardLimits(ctx context.Context, cardID int64, limits models.CardLimits) (*models.Card, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if limits.DailyLimit == nil && limits.TransactionLimit == nil {
		return nil, invalid("limits", "at least one limit is required")
	}
	for field, v := range map[string]*decimal.Decimal{"daily_limit": limits.DailyLimit, "transaction_limit": limits.TransactionLimit} {
		if v == nil {
			continue
		}
		if err := positiveMoney(field, *v); err != nil {
			return nil, err
		}
	}

	card, err := s.updateCard(ctx, cardID, func(c *models.Card) error {
		if limits.DailyLimit != nil {
			c.DailyLimit = limits.DailyLimit
		}
		if limits.TransactionLimit != nil {
			c.TransactionLimit = limits.TransactionLimit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", cardID).Info("Card limits updated")
	s.emit(ctx, notify.EventCardLimitsChanged, notify.CardSettingsChanged(card, "limits"))
	return card, nil
}

// SetCardFreeze freezes a card, optionally until a point in time, or
// unfreezes it. Owner or admin.
func (s *Service) SetCardFreeze(ctx context.Context, cardID int64, frozen bool, until *time.Time) (*models.Card, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if until != nil && !frozen {
		return nil, invalid("freeze_until", "only allowed when freezing")
	}
	if until != nil && !until.After(s.now()) {
		return nil, invalid("freeze_until", "must be in the future")
	}

	card, err := s.updateCard(ctx, cardID, func(c *models.Card) error {
		if _, err := requireOwnerOrAdmin(ctx, c.UserID); err != nil {
			return err
		}
		c.IsFrozen = frozen
		c.FreezeUntil = until
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", cardID).Infof("Card frozen=%t", frozen)
	s.emit(ctx, notify.EventCardFreezeChanged, notify.CardSettingsChanged(card, "freeze state"))
	return card, nil
}

// SetCardNotificationsEnabled stores the owner's alert preference. Owner or admin.
func (s *Service) SetCardNotificationsEnabled(ctx context.Context, cardID int64, enabled bool) (*models.Card, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	card, err := s.updateCard(ctx, cardID, func(c *models.Card) error {
		if _, err := requireOwnerOrAdmin(ctx, c.UserID); err != nil {
			return err
		}
		c.NotificationsEnabled = enabled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", cardID).Infof("Card notifications=%t", enabled)
	s.emit(ctx, notify.EventCardNotificationsPref, notify.CardSettingsChanged(card, "notification preference"))
	return card, nil
}

// DeleteCard removes a card and notifies the owner. Admin only.
func (s *Service) DeleteCard(ctx context.Context, cardID int64) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	card, err := s.removeCard(ctx, cardID)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "user_id": card.UserID}).Info("Card deleted")
	s.emit(ctx, notify.EventCardRemoved, notify.CardRemoved(card))
	return nil
}

func (s *Service) removeCard(ctx context.Context, cardID int64) (*models.Card, error) {
	unlock := s.locks.Lock(cardKey(cardID))
	defer unlock()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteCard(ctx, cardID); err != nil {
		return nil, storeErr("delete card", err)
	}
	return card, nil
}

// ListCards returns the user's cards with masked numbers. Owner or admin.
func (s *Service) ListCards(ctx context.Context, userID int64) ([]models.CardView, error) {
	if _, err := requireOwnerOrAdmin(ctx, userID); err != nil {
		return nil, err
	}
	cards, err := s.repo.ListCardsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list cards", err)
	}
	out := make([]models.CardView, 0, len(cards))
	for _, c := range cards {
		opened, err := s.openCard(c)
		if err != nil {
			return nil, err
		}
		out = append(out, View(opened))
	}
	return out, nil
}

// ReleaseExpiredFreezes unfreezes every card whose freeze_until has passed
// and returns how many were released. Runs as SystemActor from the scheduler.
func (s *Service) ReleaseExpiredFreezes(ctx context.Context) (int, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return 0, err
	}
	cards, err := s.repo.ListExpiredFreezes(ctx, s.now())
	if err != nil {
		return 0, storeErr("list expired freezes", err)
	}

	released := 0
	for _, card := range cards {
		ok, err := s.releaseFreeze(ctx, card.ID)
		if err != nil {
			s.log.WithField("card_id", card.ID).Errorf("Failed to release card freeze: %v", err)
			continue
		}
		if ok {
			released++
		}
	}
	if released > 0 {
		s.log.Infof("Released %d expired card freezes", released)
	}
	return released, nil
}

// releaseFreeze re-reads the card under its lock and unfreezes it only if the
// freeze it holds now has still expired.
func (s *Service) releaseFreeze(ctx context.Context, cardID int64) (bool, error) {
	unlock := s.locks.Lock(cardKey(cardID))
	defer unlock()

	card, err := s.loadCard(ctx, cardID)
	if err != nil {
		return false, err
	}
	if !card.IsFrozen || card.FreezeUntil == nil || card.FreezeUntil.After(s.now()) {
		return false, nil
	}
	card.IsFrozen = false
	card.FreezeUntil = nil
	if err := s.saveCard(ctx, card); err != nil {
		return false, err
	}
	return true, nil
}
