package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

// CheckEligibility is advisory and read-only. Debit re-checks everything
// under isolation, so callers must not treat an eligible answer as a hold.
func (e *Engine) CheckEligibility(ctx context.Context, id uuid.UUID) (*domain.Eligibility, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	account, err := e.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("CheckEligibility: %w", storeErr(ctx, err))
	}
	return evaluateEligibility(account), nil
}

func evaluateEligibility(a *domain.Account) *domain.Eligibility {
	result := &domain.Eligibility{
		AccountID:     a.ID,
		AccountStatus: a.Status,
		DailyLimit:    a.DailyTransferLimit,
	}

	switch a.Status {
	case domain.AccountStatusFrozen:
		result.Reason = domain.ReasonFrozenAccount
		result.Message = "Account is frozen and cannot transact"
		return result
	case domain.AccountStatusClosed:
		result.Reason = domain.ReasonClosedAccount
		result.Message = "Account is closed and cannot transact"
		return result
	}

	result.IsEligible = true
	result.AvailableBalance = a.Balance
	return result
}
