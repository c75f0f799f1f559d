package service

import (
	"errors"
	"fmt"

	"github.com/Dan9191/bank-portal/internal/repository"
	"github.com/shopspring/decimal"
)

// moneyPlaces is the scale of every money column
const moneyPlaces = 2

var (
	// ErrNotFound is returned when a referenced account, card, goal,
	// transaction, notification or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrAccountFrozen is returned when a transaction targets a frozen account
	ErrAccountFrozen = errors.New("account is frozen")

	// ErrValidation is returned for bad input; see ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is returned when the store failed a read or write
	ErrPersistence = errors.New("persistence failed")

	// ErrStaleAccount is returned when the account balance changed between
	// read and write. It always comes wrapped together with ErrPersistence.
	ErrStaleAccount = errors.New("account was modified concurrently")

	// ErrForbidden is returned when the caller lacks the capability
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a unique value is already taken
	ErrConflict = errors.New("already exists")

	// ErrInvalidCredentials is returned by Login and token parsing
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// moneyScale rejects values the store would have to round
func moneyScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(moneyPlaces)) {
		return invalid(field, fmt.Sprintf("at most %d decimal places", moneyPlaces))
	}
	return nil
}

func positiveMoney(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return invalid(field, "must be greater than zero")
	}
	return moneyScale(field, d)
}

// storeErr maps a repository error onto the service error kinds.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrVersionConflict):
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, ErrStaleAccount)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}
