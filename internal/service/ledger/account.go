package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/logging"
)

func (e *Engine) CreateAccount(ctx context.Context, in domain.CreateAccountInput) (*domain.Account, error) {
	valid, err := domain.ValidateCreation(in, e.opts.DefaultDailyLimit)
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	now := e.now()
	account := &domain.Account{
		ID:                 uuid.New(),
		CustomerID:         valid.CustomerID,
		AccountNumber:      valid.AccountNumber,
		AccountType:        domain.AccountType(valid.AccountType),
		Balance:            *valid.InitialDeposit,
		Status:             domain.AccountStatusActive,
		DailyTransferLimit: *valid.DailyTransferLimit,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.accounts.Create(ctx, tx, account); err != nil {
			return err
		}
		ev, err := e.newEvent(account.ID, domain.EventTypeAccountCreated, domain.SnapshotOf(account), now)
		if err != nil {
			return err
		}
		return e.events.Create(ctx, tx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAccount: %w", storeErr(ctx, err))
	}
	e.committed()

	logging.FromContext(ctx).Info("account created",
		"account_id", account.ID,
		"customer_id", account.CustomerID,
		"account_type", account.AccountType,
		"initial_deposit", account.Balance.String(),
	)

	return account, nil
}

func (e *Engine) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	account, err := e.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", storeErr(ctx, err))
	}
	return account, nil
}

// SetAccountStatus overwrites the account status. Any transition among the
// three statuses is accepted except leaving CLOSED while ClosedIsTerminal is
// set; re-applying the current status still refreshes updated_at.
func (e *Engine) SetAccountStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Account, error) {
	target, err := domain.ValidateStatus(status)
	if err != nil {
		return nil, fmt.Errorf("SetAccountStatus: %w", err)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		updated  *domain.Account
		previous domain.AccountStatus
	)
	err = e.store.WithTx(ctx, func(tx *sql.Tx) error {
		account, err := e.accounts.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		previous = account.Status

		if e.opts.ClosedIsTerminal && account.Status == domain.AccountStatusClosed && target != domain.AccountStatusClosed {
			return fmt.Errorf("cannot move to %s: %w", target, domain.ErrAccountClosed)
		}

		now := e.now()
		if err := e.accounts.UpdateStatus(ctx, tx, id, target, account.Version, now); err != nil {
			return err
		}

		account.Status = target
		account.Version++
		account.UpdatedAt = now

		ev, err := e.newEvent(id, domain.EventTypeAccountStatusChanged, domain.StatusChangedPayload{
			PreviousStatus: previous,
			Account:        domain.SnapshotOf(account),
		}, now)
		if err != nil {
			return err
		}
		if err := e.events.Create(ctx, tx, ev); err != nil {
			return err
		}

		updated = account
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetAccountStatus: %w", storeErr(ctx, err))
	}
	e.committed()

	logging.FromContext(ctx).Info("account status changed",
		"account_id", id,
		"from", previous,
		"to", target,
	)

	return updated, nil
}
