package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/account-ledger/internal/domain"
	"github.com/josh-kwaku/account-ledger/internal/events"
	"github.com/josh-kwaku/account-ledger/internal/repository"
	"github.com/josh-kwaku/account-ledger/internal/service/ledger"
	"github.com/josh-kwaku/account-ledger/internal/testutil"
)

type flakyPublisher struct {
	mu        sync.Mutex
	failFor   map[uuid.UUID]bool
	published []domain.AccountEvent
}

func (p *flakyPublisher) Publish(_ context.Context, ev domain.AccountEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[ev.AccountID] {
		return "", errors.New("stream unavailable")
	}
	p.published = append(p.published, ev)
	return "0-1", nil
}

func newTestEngine(db *sql.DB) *ledger.Engine {
	return ledger.NewEngine(
		repository.NewDB(db),
		repository.NewAccountRepository(db),
		repository.NewDebitEntryRepository(db),
		repository.NewAccountEventRepository(db),
		ledger.DefaultOptions(),
	)
}

func getEventStatuses(t *testing.T, db *sql.DB, accountID uuid.UUID) map[domain.EventType]domain.EventStatus {
	t.Helper()
	rows, err := db.Query(`SELECT event_type, status FROM account_events WHERE account_id = $1`, accountID)
	require.NoError(t, err)
	defer rows.Close()

	out := make(map[domain.EventType]domain.EventStatus)
	for rows.Next() {
		var et domain.EventType
		var st domain.EventStatus
		require.NoError(t, rows.Scan(&et, &st))
		out[et] = st
	}
	require.NoError(t, rows.Err())
	return out
}

func TestOutboxDispatcher_PublishesToStream(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	engine := newTestEngine(db)
	account, err := engine.CreateAccount(ctx, domain.CreateAccountInput{
		CustomerID:    "cust-outbox",
		AccountNumber: testutil.NextAccountNumber(),
		AccountType:   "CHECKING",
	})
	require.NoError(t, err)
	_, err = engine.SetAccountStatus(ctx, account.ID, "FROZEN")
	require.NoError(t, err)

	dispatcher := NewOutboxDispatcher(
		repository.NewDB(db),
		repository.NewAccountEventRepository(db),
		events.NewPublisher(client, "account.events"),
		slog.Default(),
		OutboxConfig{BatchSize: 10},
	)

	n, err := dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := client.XRange(ctx, "account.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	statuses := getEventStatuses(t, db, account.ID)
	assert.Equal(t, domain.EventStatusPublished, statuses[domain.EventTypeAccountCreated])
	assert.Equal(t, domain.EventStatusPublished, statuses[domain.EventTypeAccountStatusChanged])

	n, err = dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxDispatcher_FailureBlocksAccountAndGivesUp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := newTestEngine(db)

	broken := testutil.SeedAccount(t, db, "100", domain.AccountStatusActive)
	healthy := testutil.SeedAccount(t, db, "100", domain.AccountStatusActive)
	for _, id := range []uuid.UUID{broken.ID, healthy.ID} {
		_, err := engine.Debit(ctx, domain.DebitRequest{AccountID: id, Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		_, err = engine.SetAccountStatus(ctx, id, "FROZEN")
		require.NoError(t, err)
	}

	pub := &flakyPublisher{failFor: map[uuid.UUID]bool{broken.ID: true}}
	dispatcher := NewOutboxDispatcher(
		repository.NewDB(db),
		repository.NewAccountEventRepository(db),
		pub,
		slog.Default(),
		OutboxConfig{BatchSize: 10, MaxAttempts: 2},
	)

	n, err := dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, ev := range pub.published {
		assert.Equal(t, healthy.ID, ev.AccountID)
	}

	// the debit event failed once; the status event behind it was never tried
	stored, err := repository.NewAccountEventRepository(db).GetByAccountID(ctx, broken.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, domain.EventStatusPending, stored[0].Status)
	assert.Equal(t, 1, stored[0].Attempts)
	assert.Equal(t, 0, stored[1].Attempts)

	_, err = dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)

	statuses := getEventStatuses(t, db, broken.ID)
	assert.Equal(t, domain.EventStatusFailed, statuses[domain.EventTypeDebited])
	assert.Equal(t, domain.EventStatusPending, statuses[domain.EventTypeAccountStatusChanged])
}

func TestOutboxDispatcher_OnePassAtATime(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	engine := newTestEngine(db)

	seeded := testutil.SeedAccount(t, db, "10", domain.AccountStatusActive)
	_, err := engine.Debit(ctx, domain.DebitRequest{AccountID: seeded.ID, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	repo := repository.NewAccountEventRepository(db)
	store := repository.NewDB(db)

	holder, err := store.BeginTx(ctx, nil)
	require.NoError(t, err)
	locked, err := repo.TryLockDispatch(ctx, holder)
	require.NoError(t, err)
	require.True(t, locked)

	pub := &flakyPublisher{}
	dispatcher := NewOutboxDispatcher(store, repo, pub, slog.Default(), OutboxConfig{BatchSize: 10})

	n, err := dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.published)
	assert.Equal(t, domain.EventStatusPending, getEventStatuses(t, db, seeded.ID)[domain.EventTypeDebited])

	require.NoError(t, holder.Rollback())

	n, err = dispatcher.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.EventStatusPublished, getEventStatuses(t, db, seeded.ID)[domain.EventTypeDebited])
}

func TestOutboxDispatcher_NotifyWakesLoop(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &flakyPublisher{}
	dispatcher := NewOutboxDispatcher(
		repository.NewDB(db),
		repository.NewAccountEventRepository(db),
		pub,
		slog.Default(),
		OutboxConfig{Interval: time.Hour},
	)
	engine := newTestEngine(db)
	engine.SetNotifier(dispatcher)

	done := make(chan struct{})
	go func() {
		dispatcher.Start(ctx)
		close(done)
	}()

	seeded := testutil.SeedAccount(t, db, "10", domain.AccountStatusActive)
	_, err := engine.Debit(context.Background(), domain.DebitRequest{AccountID: seeded.ID, Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.published) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
