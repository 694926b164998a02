package repository

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

const accountColumns = `id, customer_id, account_number, account_type, balance, status,
	daily_transfer_limit, version, created_at, updated_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *sql.Tx, account *domain.Account) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO accounts (
			id, customer_id, account_number, account_type, balance, status,
			daily_transfer_limit, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.CustomerID, account.AccountNumber, account.AccountType,
		account.Balance, account.Status, account.DailyTransferLimit, account.Version,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", classify(err))
	}
	return a, nil
}

// GetInTx reads the row inside tx without locking it. Writers must then
// guard with the version they read.
func (r *AccountRepository) GetInTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetInTx: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetInTx: %w", classify(err))
	}
	return a, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", classify(err))
	}
	return a, nil
}

// UpdateBalance writes newBalance only if the row still carries
// expectedVersion, bumping the version by one.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance decimal.Decimal, expectedVersion int64, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, updatedAt, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", classify(err))
	}
	return checkVersionedWrite("UpdateBalance", res)
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.AccountStatus, expectedVersion int64, updatedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		status, updatedAt, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", classify(err))
	}
	return checkVersionedWrite("UpdateStatus", res)
}

func checkVersionedWrite(op string, res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrConcurrencyConflict)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	err := s.Scan(
		&a.ID, &a.CustomerID, &a.AccountNumber, &a.AccountType,
		&a.Balance, &a.Status, &a.DailyTransferLimit, &a.Version,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
