package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

const (
	accountNumberConstraint = "accounts_account_number_key"
	debitKeyConstraint      = "debit_entries_account_key"
)

type scanner interface {
	Scan(dest ...any) error
}

type DB struct {
	pool *sql.DB
}

func NewDB(pool *sql.DB) *DB {
	return &DB{pool: pool}
}

func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := d.pool.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("BeginTx: %w", classify(err))
	}
	return tx, nil
}

// WithTx runs fn inside a transaction, committing only if fn returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", classify(err))
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	if err := d.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("Ping: %w", classify(err))
	}
	return nil
}

// classify maps driver errors onto the domain's store error kinds. Errors
// that already carry a domain kind pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrStoreTimeout,
		domain.ErrStoreUnavailable,
		domain.ErrConcurrencyConflict,
		domain.ErrDuplicateAccountNumber,
		domain.ErrAccountNotFound,
		context.Canceled,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			switch pqErr.Constraint {
			case accountNumberConstraint:
				return fmt.Errorf("%w: %w", domain.ErrDuplicateAccountNumber, err)
			case debitKeyConstraint:
				return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
			}
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
		case "57014":
			return fmt.Errorf("%w: %w", domain.ErrStoreTimeout, err)
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}
