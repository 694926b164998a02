package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

type outboxRepo interface {
	TryLockDispatch(ctx context.Context, tx *sql.Tx) (bool, error)
	ClaimPending(ctx context.Context, tx *sql.Tx, limit int) ([]domain.AccountEvent, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.EventStatus) error
}

type eventPublisher interface {
	Publish(ctx context.Context, ev domain.AccountEvent) (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type OutboxConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// OutboxDispatcher moves committed account events from the outbox table to
// the event stream. Delivery is at least once: an event published just before
// a failed commit is published again on the next pass.
type OutboxDispatcher struct {
	store       txRunner
	events      outboxRepo
	publisher   eventPublisher
	logger      *slog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	wake        chan struct{}
}

func NewOutboxDispatcher(
	store txRunner,
	events outboxRepo,
	publisher eventPublisher,
	logger *slog.Logger,
	cfg OutboxConfig,
) *OutboxDispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}

	return &OutboxDispatcher{
		store:       store,
		events:      events,
		publisher:   publisher,
		logger:      logger,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		wake:        make(chan struct{}, 1),
	}
}

// Notify asks for a pass without waiting for the next tick. It never blocks.
func (d *OutboxDispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *OutboxDispatcher) Start(ctx context.Context) {
	d.logger.Info("outbox dispatcher started", "interval", d.interval, "batch_size", d.batchSize)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			d.poll(ctx)
		case <-d.wake:
			d.poll(ctx)
		}
	}
}

func (d *OutboxDispatcher) poll(ctx context.Context) {
	for {
		n, err := d.DispatchOnce(ctx)
		if err != nil {
			d.logger.Error("failed to dispatch outbox events", "error", err)
			return
		}
		if n < d.batchSize {
			return
		}
	}
}

// DispatchOnce claims one batch of pending events and publishes them in
// order. It returns the number of events published. Only one pass runs at a
// time across instances; a pass that finds another one running publishes
// nothing.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	var published int

	err := d.store.WithTx(ctx, func(tx *sql.Tx) error {
		locked, err := d.events.TryLockDispatch(ctx, tx)
		if err != nil {
			return err
		}
		if !locked {
			d.logger.Debug("outbox pass already running elsewhere")
			return nil
		}

		events, err := d.events.ClaimPending(ctx, tx, d.batchSize)
		if err != nil {
			return err
		}

		// once an account's event fails, its later events wait so
		// consumers never see them out of order
		blocked := make(map[uuid.UUID]bool)

		for _, ev := range events {
			if blocked[ev.AccountID] {
				continue
			}

			if _, err := d.publisher.Publish(ctx, ev); err != nil {
				blocked[ev.AccountID] = true

				status := domain.EventStatusPending
				if ev.Attempts+1 >= d.maxAttempts {
					status = domain.EventStatusFailed
				}
				d.logger.Warn("failed to publish account event",
					"event_id", ev.ID,
					"account_id", ev.AccountID,
					"event_type", ev.EventType,
					"attempt", ev.Attempts+1,
					"next_status", status,
					"error", err,
				)
				if err := d.events.UpdateStatus(ctx, tx, ev.ID, status); err != nil {
					return err
				}
				continue
			}

			if err := d.events.UpdateStatus(ctx, tx, ev.ID, domain.EventStatusPublished); err != nil {
				return err
			}
			published++
			d.logger.Debug("account event published",
				"event_id", ev.ID,
				"account_id", ev.AccountID,
				"event_type", ev.EventType,
			)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
