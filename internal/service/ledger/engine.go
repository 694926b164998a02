// Package ledger is the account ledger engine: it creates accounts, changes
// their status, answers eligibility questions and applies atomic debits.
//
// All durable state lives in the store. The engine holds no mutable state of
// its own, so one Engine is shared by every request handler.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

type ConcurrencyMode string

const (
	// ConcurrencyPessimistic serialises writers on the account row lock.
	ConcurrencyPessimistic ConcurrencyMode = "pessimistic"
	// ConcurrencyOptimistic reads without locking and commits only if the
	// row version is unchanged, retrying on conflict.
	ConcurrencyOptimistic ConcurrencyMode = "optimistic"
)

type accountRepo interface {
	Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountStatus, expectedVersion int64, updatedAt time.Time) error
}

type debitEntryRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.DebitEntry) error
	GetByKey(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, key string) (*domain.DebitEntry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.DebitEntry, int, error)
}

type eventRepo interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.AccountEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// commitNotifier is told after a transaction carrying events has committed.
type commitNotifier interface {
	Notify()
}

type Options struct {
	Concurrency       ConcurrencyMode
	MaxRetries        int
	RetryInterval     time.Duration
	StoreTimeout      time.Duration
	ClosedIsTerminal  bool
	DefaultDailyLimit decimal.Decimal
}

func DefaultOptions() Options {
	return Options{
		Concurrency:       ConcurrencyPessimistic,
		MaxRetries:        5,
		RetryInterval:     5 * time.Millisecond,
		StoreTimeout:      3 * time.Second,
		ClosedIsTerminal:  true,
		DefaultDailyLimit: decimal.NewFromInt(10000),
	}
}

type Engine struct {
	store    txRunner
	accounts accountRepo
	entries  debitEntryRepo
	events   eventRepo
	notifier commitNotifier
	opts     Options
	now      func() time.Time
}

func NewEngine(store txRunner, accounts accountRepo, entries debitEntryRepo, events eventRepo, opts Options) *Engine {
	defaults := DefaultOptions()
	if opts.Concurrency == "" {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaults.RetryInterval
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaults.StoreTimeout
	}

	return &Engine{
		store:    store,
		accounts: accounts,
		entries:  entries,
		events:   events,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier registers n to be woken after every commit that wrote events.
func (e *Engine) SetNotifier(n commitNotifier) {
	e.notifier = n
}

func (e *Engine) Options() Options {
	return e.opts
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.opts.StoreTimeout)
}

func (e *Engine) committed() {
	if e.notifier != nil {
		e.notifier.Notify()
	}
}

// storeErr makes sure a blown deadline surfaces as ErrStoreTimeout no matter
// which layer noticed it first.
func storeErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStoreTimeout) {
		return err
	}
	expired := errors.Is(ctx.Err(), context.DeadlineExceeded)
	if errors.Is(err, context.DeadlineExceeded) || (expired && errors.Is(err, domain.ErrStoreUnavailable)) {
		return fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
	}
	return err
}

func (e *Engine) newEvent(accountID uuid.UUID, eventType domain.EventType, payload any, now time.Time) (*domain.AccountEvent, error) {
	ev, err := domain.NewAccountEvent(accountID, eventType, payload, now)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return ev, nil
}
