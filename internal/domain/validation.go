package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(19,4).
const MoneyScale = 4

var maxMoney = decimal.New(1, 19-MoneyScale)

// CheckMoney reports why d cannot be stored exactly, or "" if it can.
func CheckMoney(d decimal.Decimal) string {
	if !d.Equal(d.Truncate(MoneyScale)) {
		return fmt.Sprintf("must have at most %d decimal places", MoneyScale)
	}
	if d.Abs().GreaterThanOrEqual(maxMoney) {
		return "must be less than " + maxMoney.String()
	}
	return ""
}

type CreateAccountInput struct {
	CustomerID         string
	AccountNumber      string
	AccountType        string
	InitialDeposit     *decimal.Decimal
	DailyTransferLimit *decimal.Decimal
}

// ValidateCreation checks and normalises account creation input. An omitted
// initial deposit becomes zero; an omitted daily limit becomes defaultLimit.
func ValidateCreation(in CreateAccountInput, defaultLimit decimal.Decimal) (CreateAccountInput, error) {
	out := CreateAccountInput{
		CustomerID:    strings.TrimSpace(in.CustomerID),
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		AccountType:   strings.ToUpper(strings.TrimSpace(in.AccountType)),
	}

	if out.CustomerID == "" {
		return out, &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if out.AccountNumber == "" {
		return out, &ValidationError{Field: "account_number", Reason: "required"}
	}
	if out.AccountType == "" {
		return out, &ValidationError{Field: "account_type", Reason: "required"}
	}
	if !AccountType(out.AccountType).IsValid() {
		return out, &ValidationError{Field: "account_type", Reason: "must be SAVINGS or CHECKING"}
	}

	deposit := decimal.Zero
	if in.InitialDeposit != nil {
		deposit = *in.InitialDeposit
	}
	if deposit.IsNegative() {
		return out, &ValidationError{Field: "initial_deposit", Reason: "must not be negative"}
	}
	if reason := CheckMoney(deposit); reason != "" {
		return out, &ValidationError{Field: "initial_deposit", Reason: reason}
	}
	out.InitialDeposit = &deposit

	limit := defaultLimit
	if in.DailyTransferLimit != nil {
		limit = *in.DailyTransferLimit
	}
	if limit.IsNegative() {
		return out, &ValidationError{Field: "daily_transfer_limit", Reason: "must not be negative"}
	}
	if reason := CheckMoney(limit); reason != "" {
		return out, &ValidationError{Field: "daily_transfer_limit", Reason: reason}
	}
	out.DailyTransferLimit = &limit

	return out, nil
}

func ValidateStatus(status string) (AccountStatus, error) {
	s := AccountStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !s.IsValid() {
		return "", &ValidationError{Field: "status", Reason: "must be ACTIVE, FROZEN, or CLOSED"}
	}
	return s, nil
}

func ValidateDebitAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if reason := CheckMoney(amount); reason != "" {
		return &ValidationError{Field: "amount", Reason: reason}
	}
	return nil
}
