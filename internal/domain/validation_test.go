package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidateCreation(t *testing.T) {
	defaultLimit := decimal.RequireFromString("5000")

	tests := []struct {
		name        string
		in          CreateAccountInput
		wantField   string
		wantDeposit string
		wantLimit   string
	}{
		{
			name:        "valid with deposit",
			in:          CreateAccountInput{CustomerID: "c-1", AccountNumber: "1000000001", AccountType: "SAVINGS", InitialDeposit: decPtr("50000.50")},
			wantDeposit: "50000.50",
			wantLimit:   "5000",
		},
		{
			name:        "deposit omitted defaults to zero",
			in:          CreateAccountInput{CustomerID: "c-1", AccountNumber: "1000000002", AccountType: "checking"},
			wantDeposit: "0",
			wantLimit:   "5000",
		},
		{
			name:        "explicit daily limit kept",
			in:          CreateAccountInput{CustomerID: "c-1", AccountNumber: "1000000003", AccountType: "CHECKING", DailyTransferLimit: decPtr("250.75")},
			wantDeposit: "0",
			wantLimit:   "250.75",
		},
		{
			name:      "missing customer",
			in:        CreateAccountInput{AccountNumber: "1", AccountType: "SAVINGS"},
			wantField: "customer_id",
		},
		{
			name:      "blank account number",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "   ", AccountType: "SAVINGS"},
			wantField: "account_number",
		},
		{
			name:      "missing account type",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1"},
			wantField: "account_type",
		},
		{
			name:      "unknown account type",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "BROKERAGE"},
			wantField: "account_type",
		},
		{
			name:      "negative deposit",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "SAVINGS", InitialDeposit: decPtr("-0.01")},
			wantField: "initial_deposit",
		},
		{
			name:      "deposit finer than storage scale",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "SAVINGS", InitialDeposit: decPtr("10.00001")},
			wantField: "initial_deposit",
		},
		{
			name:      "deposit beyond column range",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "SAVINGS", InitialDeposit: decPtr("1000000000000000")},
			wantField: "initial_deposit",
		},
		{
			name:        "trailing zeros past scale accepted",
			in:          CreateAccountInput{CustomerID: "c-1", AccountNumber: "1000000004", AccountType: "SAVINGS", InitialDeposit: decPtr("10.500000")},
			wantDeposit: "10.5",
			wantLimit:   "5000",
		},
		{
			name:      "limit finer than storage scale",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "SAVINGS", DailyTransferLimit: decPtr("0.12345")},
			wantField: "daily_transfer_limit",
		},
		{
			name:      "negative limit",
			in:        CreateAccountInput{CustomerID: "c-1", AccountNumber: "1", AccountType: "SAVINGS", DailyTransferLimit: decPtr("-1")},
			wantField: "daily_transfer_limit",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := ValidateCreation(tc.in, defaultLimit)
			if tc.wantField != "" {
				require.ErrorIs(t, err, ErrValidation)
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tc.wantField, vErr.Field)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, out.InitialDeposit)
			require.NotNil(t, out.DailyTransferLimit)
			assert.True(t, decimal.RequireFromString(tc.wantDeposit).Equal(*out.InitialDeposit))
			assert.True(t, decimal.RequireFromString(tc.wantLimit).Equal(*out.DailyTransferLimit))
			assert.True(t, AccountType(out.AccountType).IsValid())
		})
	}
}

func TestValidateStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    AccountStatus
		wantErr bool
	}{
		{in: "ACTIVE", want: AccountStatusActive},
		{in: "frozen", want: AccountStatusFrozen},
		{in: " Closed ", want: AccountStatusClosed},
		{in: "PENDING", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ValidateStatus(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateDebitAmount(t *testing.T) {
	assert.NoError(t, ValidateDebitAmount(decimal.RequireFromString("0.01")))
	assert.ErrorIs(t, ValidateDebitAmount(decimal.Zero), ErrValidation)
	assert.ErrorIs(t, ValidateDebitAmount(decimal.RequireFromString("-5")), ErrValidation)
	assert.NoError(t, ValidateDebitAmount(decimal.RequireFromString("0.0001")))
	assert.NoError(t, ValidateDebitAmount(decimal.RequireFromString("999999999999999.9999")))
	assert.ErrorIs(t, ValidateDebitAmount(decimal.RequireFromString("0.00005")), ErrValidation)
	assert.ErrorIs(t, ValidateDebitAmount(decimal.RequireFromString("0.00001")), ErrValidation)
	assert.ErrorIs(t, ValidateDebitAmount(decimal.RequireFromString("1000000000000000")), ErrValidation)
}

func TestCheckMoney(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{in: "0", ok: true},
		{in: "40000.50", ok: true},
		{in: "1.2300000", ok: true},
		{in: "-999999999999999.9999", ok: true},
		{in: "0.00005", ok: false},
		{in: "1e15", ok: false},
		{in: "-1000000000000000", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			reason := CheckMoney(decimal.RequireFromString(tc.in))
			assert.Equal(t, tc.ok, reason == "", reason)
		})
	}
}

func TestAccountCanDebit(t *testing.T) {
	balance := decimal.RequireFromString("100.00")

	tests := []struct {
		name    string
		status  AccountStatus
		amount  string
		wantErr error
	}{
		{name: "exact balance", status: AccountStatusActive, amount: "100.00"},
		{name: "over balance", status: AccountStatusActive, amount: "100.01", wantErr: ErrInsufficientFunds},
		{name: "frozen ignores balance", status: AccountStatusFrozen, amount: "1", wantErr: ErrAccountNotEligible},
		{name: "closed", status: AccountStatusClosed, amount: "1", wantErr: ErrAccountNotEligible},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Account{Status: tc.status, Balance: balance}
			err := a.CanDebit(decimal.RequireFromString(tc.amount))
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	var nfErr *InsufficientFundsError
	err := (&Account{Status: AccountStatusActive, Balance: balance}).CanDebit(decimal.RequireFromString("150"))
	require.ErrorAs(t, err, &nfErr)
	assert.True(t, balance.Equal(nfErr.Balance))
	assert.Equal(t, "150", nfErr.Requested.String())

	var neErr *NotEligibleError
	err = (&Account{Status: AccountStatusFrozen}).CanDebit(decimal.RequireFromString("1"))
	require.ErrorAs(t, err, &neErr)
	assert.Equal(t, AccountStatusFrozen, neErr.Status)
}
