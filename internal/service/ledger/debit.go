package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/logging"
)

const (
	maxIdempotencyKeyLength = 255

	defaultListLimit = 20
	maxListLimit     = 100
)

// Debit atomically subtracts req.Amount from the account. The status check,
// the funds check and the write happen against one consistent view of the
// row, so concurrent debits can never drive the balance below zero.
//
// A non-empty IdempotencyKey makes the debit safe to resend: the first
// successful application is recorded with the key and later requests with
// the same key and amount get that result back with Replayed set.
func (e *Engine) Debit(ctx context.Context, req domain.DebitRequest) (*domain.DebitResult, error) {
	if err := domain.ValidateDebitAmount(req.Amount); err != nil {
		return nil, fmt.Errorf("Debit: %w", err)
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return nil, fmt.Errorf("Debit: %w", &domain.ValidationError{
			Field:  "idempotency_key",
			Reason: fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength),
		})
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ctx = logging.With(ctx, "account_id", req.AccountID, "amount", req.Amount.String())
	log := logging.FromContext(ctx)

	var (
		result   *domain.DebitResult
		attempts int
	)
	op := func() error {
		attempts++
		r, err := e.debitOnce(ctx, req.AccountID, req.Amount, key)
		if err == nil {
			result = r
			return nil
		}
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			log.Debug("debit conflicted, retrying", "attempt", attempts)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, e.retryPolicy(ctx)); err != nil {
		err = storeErr(ctx, err)
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			log.Warn("debit gave up after repeated conflicts", "attempts", attempts)
			return nil, fmt.Errorf("Debit: after %d attempts: %w", attempts, err)
		}
		return nil, fmt.Errorf("Debit: %w", err)
	}

	if result.Replayed {
		log.Info("debit replayed", "entry_id", result.Entry.ID)
		return result, nil
	}
	e.committed()

	log.Info("debit applied",
		"entry_id", result.Entry.ID,
		"balance", result.Account.Balance.String(),
		"attempts", attempts,
	)
	return result, nil
}

func (e *Engine) retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.RetryInterval
	b.MaxInterval = 20 * e.opts.RetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.opts.MaxRetries)), ctx)
}

func (e *Engine) readForDebit(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	if e.opts.Concurrency == ConcurrencyOptimistic {
		return e.accounts.GetInTx(ctx, tx, id)
	}
	return e.accounts.GetForUpdate(ctx, tx, id)
}

func (e *Engine) debitOnce(ctx context.Context, id uuid.UUID, amount decimal.Decimal, key string) (*domain.DebitResult, error) {
	var result *domain.DebitResult

	err := e.store.WithTx(ctx, func(tx *sql.Tx) error {
		account, err := e.readForDebit(ctx, tx, id)
		if err != nil {
			return err
		}

		if key != "" {
			prior, err := e.entries.GetByKey(ctx, tx, id, key)
			if err != nil {
				return err
			}
			if prior != nil {
				if !prior.Amount.Equal(amount) {
					return fmt.Errorf("key %q was applied with amount %s: %w", key, prior.Amount, domain.ErrIdempotencyConflict)
				}
				result = &domain.DebitResult{Account: account, Entry: prior, Replayed: true}
				return nil
			}
		}

		if err := account.CanDebit(amount); err != nil {
			return err
		}

		now := e.now()
		newBalance := account.Balance.Sub(amount)
		if err := e.accounts.UpdateBalance(ctx, tx, id, newBalance, account.Version, now); err != nil {
			return err
		}

		entry := &domain.DebitEntry{
			ID:            uuid.New(),
			AccountID:     id,
			Amount:        amount,
			BalanceBefore: account.Balance,
			BalanceAfter:  newBalance,
			CreatedAt:     now,
		}
		if key != "" {
			entry.IdempotencyKey = &key
		}
		if err := e.entries.Create(ctx, tx, entry); err != nil {
			return err
		}

		account.Balance = newBalance
		account.Version++
		account.UpdatedAt = now

		ev, err := e.newEvent(id, domain.EventTypeDebited, domain.DebitedPayload{
			AccountID: id,
			EntryID:   entry.ID,
			Amount:    amount,
			Balance:   newBalance,
			Version:   account.Version,
			DebitedAt: now,
		}, now)
		if err != nil {
			return err
		}
		if err := e.events.Create(ctx, tx, ev); err != nil {
			return err
		}

		result = &domain.DebitResult{Account: account, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type DebitPage struct {
	Entries []domain.DebitEntry
	Total   int
	Limit   int
	Offset  int
}

// ListDebits returns the account's debit history, newest first.
func (e *Engine) ListDebits(ctx context.Context, id uuid.UUID, limit, offset int) (*DebitPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		return nil, fmt.Errorf("ListDebits: %w", &domain.ValidationError{Field: "offset", Reason: "must not be negative"})
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if _, err := e.accounts.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("ListDebits: %w", storeErr(ctx, err))
	}

	entries, total, err := e.entries.GetByAccountID(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListDebits: %w", storeErr(ctx, err))
	}

	return &DebitPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

