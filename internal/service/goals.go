package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func goalKey(id int64) string {
	return "goal:" + strconv.FormatInt(id, 10)
}

// CreateGoal opens a savings goal for userID. Owner or admin.
func (s *Service) CreateGoal(ctx context.Context, userID int64, name string, target decimal.Decimal, deadline *time.Time) (*models.FinancialGoal, error) {
	if _, err := requireOwnerOrAdmin(ctx, userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if err := positiveMoney("target_amount", target); err != nil {
		return nil, err
	}

	goal := &models.FinancialGoal{
		UserID:        userID,
		Name:          name,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Deadline:      deadline,
		IsActive:      true,
	}
	if err := s.repo.CreateGoal(ctx, goal); err != nil {
		return nil, storeErr("create goal", err)
	}

	s.log.WithFields(logrus.Fields{"goal_id": goal.ID, "user_id": userID}).Info("Goal created")
	return goal, nil
}

// Contribute adds amount to a goal. Over-funding past the target is
// allowed. Owner or admin.
func (s *Service) Contribute(ctx context.Context, goalID int64, amount decimal.Decimal) (*models.FinancialGoal, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if err := positiveMoney("amount", amount); err != nil {
		return nil, err
	}

	goal, err := s.addToGoal(ctx, goalID, amount)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"goal_id": goalID, "amount": amount.String()}).Info("Goal contribution recorded")
	s.emit(ctx, notify.EventGoalContribution, notify.GoalContribution(goal, amount.StringFixed(2)))
	return goal, nil
}

func (s *Service) addToGoal(ctx context.Context, goalID int64, amount decimal.Decimal) (*models.FinancialGoal, error) {
	unlock := s.locks.Lock(goalKey(goalID))
	defer unlock()

	goal, err := s.repo.GetGoal(ctx, goalID)
	if err != nil {
		return nil, storeErr("load goal", err)
	}
	if _, err := requireOwnerOrAdmin(ctx, goal.UserID); err != nil {
		return nil, err
	}

	goal.CurrentAmount = goal.CurrentAmount.Add(amount)
	if err := s.repo.UpdateGoalAmount(ctx, goal); err != nil {
		return nil, storeErr("update goal", err)
	}
	return goal, nil
}

// ListGoals returns the user's goals. Owner or admin.
func (s *Service) ListGoals(ctx context.Context, userID int64) ([]*models.FinancialGoal, error) {
	if _, err := requireOwnerOrAdmin(ctx, userID); err != nil {
		return nil, err
	}
	goals, err := s.repo.ListGoalsByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list goals", err)
	}
	return goals, nil
}
