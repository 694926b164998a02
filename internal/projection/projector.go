package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/events"
)

const viewKeyPrefix = "ledger:account:"

// ErrViewMissing is returned for a debit that arrives before its account's
// creation event has been projected. The subscriber keeps it pending and
// hands it back once earlier messages have been applied.
var ErrViewMissing = errors.New("account view not projected yet")

type AccountView struct {
	AccountID     string          `json:"account_id"`
	CustomerID    string          `json:"customer_id"`
	AccountNumber string          `json:"account_number"`
	AccountType   string          `json:"account_type"`
	Status        string          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	Version       int64           `json:"version"`
	LastDebitAt   *time.Time      `json:"last_debit_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func viewFromSnapshot(s domain.AccountSnapshot) *AccountView {
	return &AccountView{
		AccountID:     s.AccountID.String(),
		CustomerID:    s.CustomerID,
		AccountNumber: s.AccountNumber,
		AccountType:   string(s.AccountType),
		Status:        string(s.Status),
		Balance:       s.Balance,
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
	}
}

func NewAccountViews(client *redis.Client, ttl time.Duration) *ViewCache[AccountView] {
	return NewViewCache[AccountView](client, viewKeyPrefix, ttl)
}

// Projector applies stream events to the account views. Every event carries
// the row version it produced, so redelivered or reordered events older than
// the stored view are dropped.
type Projector struct {
	views  *ViewCache[AccountView]
	logger *slog.Logger
}

func NewProjector(views *ViewCache[AccountView], logger *slog.Logger) *Projector {
	return &Projector{views: views, logger: logger}
}

func (p *Projector) Get(ctx context.Context, accountID string) (*AccountView, bool, error) {
	return p.views.Get(ctx, accountID)
}

// Handle matches events.Handler.
func (p *Projector) Handle(ctx context.Context, ev events.Event) error {
	switch domain.EventType(ev.Type) {
	case domain.EventTypeAccountCreated:
		var snap domain.AccountSnapshot
		if err := json.Unmarshal(ev.Data, &snap); err != nil {
			return fmt.Errorf("Handle %s: %w", ev.Type, err)
		}
		return p.replace(ctx, viewFromSnapshot(snap))

	case domain.EventTypeAccountStatusChanged:
		var payload domain.StatusChangedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return fmt.Errorf("Handle %s: %w", ev.Type, err)
		}
		return p.replace(ctx, viewFromSnapshot(payload.Account))

	case domain.EventTypeDebited:
		var payload domain.DebitedPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return fmt.Errorf("Handle %s: %w", ev.Type, err)
		}
		return p.applyDebit(ctx, payload)

	default:
		p.logger.Warn("ignoring unknown event type", "event_type", ev.Type, "event_id", ev.ID)
		return nil
	}
}

func (p *Projector) replace(ctx context.Context, next *AccountView) error {
	current, ok, err := p.views.Get(ctx, next.AccountID)
	if err != nil {
		return err
	}
	if ok {
		if current.Version >= next.Version {
			return nil
		}
		next.LastDebitAt = current.LastDebitAt
	}
	return p.views.Set(ctx, next.AccountID, next)
}

func (p *Projector) applyDebit(ctx context.Context, d domain.DebitedPayload) error {
	id := d.AccountID.String()

	view, ok, err := p.views.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("applyDebit %s: %w", id, ErrViewMissing)
	}
	if view.Version >= d.Version {
		return nil
	}

	at := d.DebitedAt
	view.Balance = d.Balance
	view.Version = d.Version
	view.UpdatedAt = at
	view.LastDebitAt = &at
	return p.views.Set(ctx, id, view)
}

