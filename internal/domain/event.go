package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeAccountCreated       EventType = "account.created"
	EventTypeAccountStatusChanged EventType = "account.status_changed"
	EventTypeDebited              EventType = "account.debited"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusPublished EventStatus = "published"
	EventStatusFailed    EventStatus = "failed"
)

// AccountEvent is an outbox row. It is written in the same transaction as
// the change it describes and only leaves the store after that commit.
type AccountEvent struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	EventType   EventType
	Payload     json.RawMessage
	Status      EventStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}

type AccountSnapshot struct {
	AccountID          uuid.UUID       `json:"account_id"`
	CustomerID         string          `json:"customer_id"`
	AccountNumber      string          `json:"account_number"`
	AccountType        AccountType     `json:"account_type"`
	Balance            decimal.Decimal `json:"balance"`
	Status             AccountStatus   `json:"status"`
	DailyTransferLimit decimal.Decimal `json:"daily_transfer_limit"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func SnapshotOf(a *Account) AccountSnapshot {
	return AccountSnapshot{
		AccountID:          a.ID,
		CustomerID:         a.CustomerID,
		AccountNumber:      a.AccountNumber,
		AccountType:        a.AccountType,
		Balance:            a.Balance,
		Status:             a.Status,
		DailyTransferLimit: a.DailyTransferLimit,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

type StatusChangedPayload struct {
	PreviousStatus AccountStatus   `json:"previous_status"`
	Account        AccountSnapshot `json:"account"`
}

type DebitedPayload struct {
	AccountID uuid.UUID       `json:"account_id"`
	EntryID   uuid.UUID       `json:"entry_id"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	DebitedAt time.Time       `json:"debited_at"`
}

func NewAccountEvent(accountID uuid.UUID, eventType EventType, payload any, now time.Time) (*AccountEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &AccountEvent{
		ID:        uuid.New(),
		AccountID: accountID,
		EventType: eventType,
		Payload:   raw,
		Status:    EventStatusPending,
		CreatedAt: now,
	}, nil
}
