package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

func TestEvaluateEligibility(t *testing.T) {
	tests := []struct {
		name     string
		status   domain.AccountStatus
		balance  string
		eligible bool
		reason   domain.EligibilityReason
	}{
		{"active", domain.AccountStatusActive, "10", true, ""},
		{"active zero balance", domain.AccountStatusActive, "0", true, ""},
		{"frozen", domain.AccountStatusFrozen, "500", false, domain.ReasonFrozenAccount},
		{"frozen zero balance", domain.AccountStatusFrozen, "0", false, domain.ReasonFrozenAccount},
		{"closed", domain.AccountStatusClosed, "5", false, domain.ReasonClosedAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &domain.Account{
				ID:                 uuid.New(),
				Status:             tt.status,
				Balance:            decimal.RequireFromString(tt.balance),
				DailyTransferLimit: decimal.NewFromInt(1000),
			}

			got := evaluateEligibility(a)
			assert.Equal(t, tt.eligible, got.IsEligible)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.status, got.AccountStatus)
			assert.True(t, got.DailyLimit.Equal(decimal.NewFromInt(1000)))
			if tt.eligible {
				assert.True(t, got.AvailableBalance.Equal(a.Balance))
				assert.Empty(t, got.Message)
			} else {
				assert.True(t, got.AvailableBalance.IsZero())
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestNewEngine_NormalisesOptions(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil, Options{MaxRetries: -3})

	opts := e.Options()
	assert.Equal(t, ConcurrencyPessimistic, opts.Concurrency)
	assert.Equal(t, 0, opts.MaxRetries)
	assert.Positive(t, opts.StoreTimeout)
	assert.Positive(t, opts.RetryInterval)
}
