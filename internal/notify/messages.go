package notify

import (
	"fmt"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/utils"
)

// TransactionApplied describes a transaction to the account owner.
func TransactionApplied(userID int64, tx *models.Transaction) *models.Notification {
	msg := fmt.Sprintf("A %s of %s was recorded on account %d.", tx.Type, tx.Amount.StringFixed(2), tx.AccountID)
	if tx.Description != "" {
		msg += " " + tx.Description
	}
	return &models.Notification{
		UserID:  userID,
		Title:   fmt.Sprintf("New %s Transaction", tx.Type),
		Message: msg,
		Type:    models.NotificationTransaction,
	}
}

// CardIssued announces a new card.
func CardIssued(card *models.Card) *models.Notification {
	return &models.Notification{
		UserID:  card.UserID,
		Title:   "New Card Issued",
		Message: fmt.Sprintf("A new %s card ending in %s has been issued to %s.", card.CardType, card.Last4(), card.CardHolderName),
		Type:    models.NotificationCard,
	}
}

// CardStatusChanged announces activation or deactivation.
func CardStatusChanged(card *models.Card) *models.Notification {
	state := "deactivated"
	if card.IsActive {
		state = "activated"
	}
	return &models.Notification{
		UserID:  card.UserID,
		Title:   "Card Status Updated",
		Message: fmt.Sprintf("Your card %s has been %s.", utils.MaskCardNumber(card.CardNumber), state),
		Type:    models.NotificationCard,
	}
}

// CardRemoved announces deletion of a card.
func CardRemoved(card *models.Card) *models.Notification {
	return &models.Notification{
		UserID:  card.UserID,
		Title:   "Card Removed",
		Message: fmt.Sprintf("Your card ending in %s has been removed.", card.Last4()),
		Type:    models.NotificationCard,
	}
}

// CardSettingsChanged covers limit, freeze and preference updates.
func CardSettingsChanged(card *models.Card, what string) *models.Notification {
	return &models.Notification{
		UserID:  card.UserID,
		Title:   "Card Settings Updated",
		Message: fmt.Sprintf("The %s of your card ending in %s changed.", what, card.Last4()),
		Type:    models.NotificationCard,
	}
}

// GoalContribution announces money added to a goal.
func GoalContribution(goal *models.FinancialGoal, amount string) *models.Notification {
	return &models.Notification{
		UserID:  goal.UserID,
		Title:   "Goal Contribution",
		Message: fmt.Sprintf("%s was added to %q. Saved %s of %s.", amount, goal.Name, goal.CurrentAmount.StringFixed(2), goal.TargetAmount.StringFixed(2)),
		Type:    models.NotificationGoal,
	}
}
