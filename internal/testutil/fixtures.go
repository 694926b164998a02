package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

var accountSeq atomic.Int64

// NextAccountNumber returns a unique ten-digit account number for the test run.
func NextAccountNumber() string {
	return fmt.Sprintf("9%09d", accountSeq.Add(1))
}

func SeedAccount(t *testing.T, db *sql.DB, balance string, status domain.AccountStatus) *domain.Account {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := &domain.Account{
		ID:                 uuid.New(),
		CustomerID:         "cust-" + uuid.NewString()[:8],
		AccountNumber:      NextAccountNumber(),
		AccountType:        domain.AccountTypeChecking,
		Balance:            decimal.RequireFromString(balance),
		Status:             status,
		DailyTransferLimit: decimal.RequireFromString("10000"),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, customer_id, account_number, account_type, balance, status,
			daily_transfer_limit, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.CustomerID, a.AccountNumber, a.AccountType, a.Balance, a.Status,
		a.DailyTransferLimit, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", a.AccountNumber, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

func CountDebitEntries(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM debit_entries WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count debit entries for %s: %v", accountID, err)
	}
	return count
}

func CountEvents(t *testing.T, db *sql.DB, accountID uuid.UUID, eventType domain.EventType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM account_events WHERE account_id = $1 AND event_type = $2`,
		accountID, eventType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count %s events for %s: %v", eventType, accountID, err)
	}
	return count
}
