package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebitEntry is an append-only record of an applied debit. When the caller
// supplied an idempotency key it is stored here so replays can be answered
// from the entry instead of being reapplied.
type DebitEntry struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	IdempotencyKey *string
	Amount         decimal.Decimal
	BalanceBefore  decimal.Decimal
	BalanceAfter   decimal.Decimal
	CreatedAt      time.Time
}

type DebitRequest struct {
	AccountID      uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
}

type DebitResult struct {
	Account  *Account
	Entry    *DebitEntry
	Replayed bool
}
