package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

const accountEventColumns = `id, account_id, event_type, payload, status,
	attempts, last_attempt, created_at`

// dispatchLockKey names the advisory lock held by the one dispatcher pass
// allowed to run at a time across all instances.
const dispatchLockKey int64 = 0x6c6564676572

type AccountEventRepository struct {
	db *sql.DB
}

func NewAccountEventRepository(db *sql.DB) *AccountEventRepository {
	return &AccountEventRepository{db: db}
}

func (r *AccountEventRepository) Create(ctx context.Context, tx *sql.Tx, event *domain.AccountEvent) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO account_events (
			id, account_id, event_type, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.AccountID, event.EventType, []byte(event.Payload),
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", classify(err))
	}
	return nil
}

// TryLockDispatch takes the dispatch advisory lock for the lifetime of tx.
// It returns false when another instance's pass holds it. Passes must not
// overlap: a second dispatcher skipping an account's locked event could
// otherwise publish that account's later events first.
func (r *AccountEventRepository) TryLockDispatch(ctx context.Context, tx *sql.Tx) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, dispatchLockKey).Scan(&locked); err != nil {
		return false, fmt.Errorf("TryLockDispatch: %w", classify(err))
	}
	return locked, nil
}

// ClaimPending locks up to limit pending events in tx. SKIP LOCKED keeps a
// claim from waiting on rows another transaction still holds.
func (r *AccountEventRepository) ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AccountEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+accountEventColumns+` FROM account_events
		WHERE status = $1 ORDER BY created_at, id LIMIT $2 FOR UPDATE SKIP LOCKED`,
		domain.EventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", classify(err))
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		e, err := scanAccountEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", classify(err))
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", classify(err))
	}
	return events, nil
}

func (r *AccountEventRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.EventStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE account_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", classify(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", classify(err))
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: event %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (r *AccountEventRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.AccountEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountEventColumns+` FROM account_events
		WHERE account_id = $1 ORDER BY created_at, id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByAccountID: %w", classify(err))
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		e, err := scanAccountEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByAccountID: scan: %w", classify(err))
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByAccountID: rows: %w", classify(err))
	}
	return events, nil
}

func scanAccountEvent(s scanner) (*domain.AccountEvent, error) {
	var e domain.AccountEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.AccountID, &e.EventType, &payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
