package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

const debitEntryColumns = `id, account_id, idempotency_key, amount,
	balance_before, balance_after, created_at`

type DebitEntryRepository struct {
	db *sql.DB
}

func NewDebitEntryRepository(db *sql.DB) *DebitEntryRepository {
	return &DebitEntryRepository{db: db}
}

func (r *DebitEntryRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.DebitEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO debit_entries (
			id, account_id, idempotency_key, amount, balance_before, balance_after, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.IdempotencyKey, entry.Amount,
		entry.BalanceBefore, entry.BalanceAfter, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

// GetByKey returns the entry recorded for key on the account, or nil if the
// key has not been applied.
func (r *DebitEntryRepository) GetByKey(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, key string) (*domain.DebitEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+debitEntryColumns+` FROM debit_entries
		WHERE account_id = $1 AND idempotency_key = $2`,
		accountID, key,
	)
	e, err := scanDebitEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByKey: %w", classify(err))
	}
	return e, nil
}

func (r *DebitEntryRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.DebitEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM debit_entries WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByAccountID: count: %w", classify(err))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+debitEntryColumns+` FROM debit_entries
		WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("GetByAccountID: %w", classify(err))
	}
	defer rows.Close()

	var entries []domain.DebitEntry
	for rows.Next() {
		e, err := scanDebitEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("GetByAccountID: scan: %w", classify(err))
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("GetByAccountID: rows: %w", classify(err))
	}
	return entries, total, nil
}

func scanDebitEntry(s scanner) (*domain.DebitEntry, error) {
	var e domain.DebitEntry
	err := s.Scan(
		&e.ID, &e.AccountID, &e.IdempotencyKey, &e.Amount,
		&e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
