package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeChecking AccountType = "CHECKING"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	}
	return false
}

type Account struct {
	ID                 uuid.UUID
	CustomerID         string
	AccountNumber      string
	AccountType        AccountType
	Balance            decimal.Decimal
	Status             AccountStatus
	DailyTransferLimit decimal.Decimal
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CanDebit reports whether amount may be taken from the account as it stands.
// Callers must hold the row (lock or version) for the answer to mean anything.
func (a *Account) CanDebit(amount decimal.Decimal) error {
	if a.Status != AccountStatusActive {
		return &NotEligibleError{Status: a.Status}
	}
	if a.Balance.Sub(amount).IsNegative() {
		return &InsufficientFundsError{Balance: a.Balance, Requested: amount}
	}
	return nil
}

type EligibilityReason string

const (
	ReasonFrozenAccount EligibilityReason = "FROZEN_ACCOUNT"
	ReasonClosedAccount EligibilityReason = "CLOSED_ACCOUNT"
)

type Eligibility struct {
	AccountID        uuid.UUID
	IsEligible       bool
	Reason           EligibilityReason
	Message          string
	AccountStatus    AccountStatus
	AvailableBalance decimal.Decimal
	DailyLimit       decimal.Decimal
}
