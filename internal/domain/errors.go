package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrAccountNotFound        = errors.New("account not found")
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrAccountNotEligible     = errors.New("account not eligible")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different request")
	ErrAccountClosed          = errors.New("account closed")
	ErrStoreTimeout           = errors.New("store timeout")
	ErrStoreUnavailable       = errors.New("store unavailable")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

type NotEligibleError struct {
	Status AccountStatus
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("account not eligible: status %s", e.Status)
}

func (e *NotEligibleError) Unwrap() error { return ErrAccountNotEligible }

type InsufficientFundsError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %s, requested %s", e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }
