package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func testEvent(t *testing.T, eventType domain.EventType) domain.AccountEvent {
	t.Helper()
	ev, err := domain.NewAccountEvent(uuid.New(), eventType, map[string]string{"balance": "12.50"}, time.Now().UTC())
	require.NoError(t, err)
	return *ev
}

func TestPublisher_Publish(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewPublisher(client, "account.events")
	ev := testEvent(t, domain.EventTypeDebited)

	id, err := pub.Publish(ctx, ev)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := client.XRange(ctx, "account.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values[messageField].(string)), &got))
	assert.Equal(t, ev.ID.String(), got.ID)
	assert.Equal(t, "account.debited", got.Type)
	assert.Equal(t, ev.AccountID.String(), got.AccountID)
	assert.JSONEq(t, `{"balance":"12.50"}`, string(got.Data))
}

func TestSubscriber_ReadOnce(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewPublisher(client, "account.events")

	var seen []Event
	sub := NewSubscriber(client, SubscriberConfig{
		Stream:        "account.events",
		Group:         "test",
		Consumer:      "c1",
		BlockDuration: 10 * time.Millisecond,
		Handler: func(_ context.Context, ev Event) error {
			seen = append(seen, ev)
			return nil
		},
	}, slog.Default())
	require.NoError(t, sub.EnsureGroup(ctx))
	require.NoError(t, sub.EnsureGroup(ctx), "second create must tolerate BUSYGROUP")

	for _, et := range []domain.EventType{domain.EventTypeAccountCreated, domain.EventTypeDebited} {
		_, err := pub.Publish(ctx, testEvent(t, et))
		require.NoError(t, err)
	}

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, acked)
	require.Len(t, seen, 2)
	assert.Equal(t, "account.created", seen[0].Type)
	assert.Equal(t, "account.debited", seen[1].Type)

	acked, err = sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)
}

func TestSubscriber_RetriesFailedMessage(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewPublisher(client, "account.events")

	var calls int
	sub := NewSubscriber(client, SubscriberConfig{
		Stream:        "account.events",
		Group:         "test",
		Consumer:      "c1",
		BlockDuration: 10 * time.Millisecond,
		Handler: func(context.Context, Event) error {
			calls++
			if calls == 1 {
				return errors.New("boom")
			}
			return nil
		},
	}, slog.Default())
	require.NoError(t, sub.EnsureGroup(ctx))

	_, err := pub.Publish(ctx, testEvent(t, domain.EventTypeDebited))
	require.NoError(t, err)

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, acked)

	pending, err := client.XPending(ctx, "account.events", "test").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	acked, err = sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, 2, calls)

	pending, err = client.XPending(ctx, "account.events", "test").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestSubscriber_PendingHandledBeforeNewMessages(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewPublisher(client, "account.events")

	failCreated := true
	var seen []string
	sub := NewSubscriber(client, SubscriberConfig{
		Stream:        "account.events",
		Group:         "test",
		Consumer:      "c1",
		BlockDuration: 10 * time.Millisecond,
		Handler: func(_ context.Context, ev Event) error {
			if ev.Type == "account.created" && failCreated {
				return errors.New("view store down")
			}
			seen = append(seen, ev.Type)
			return nil
		},
	}, slog.Default())
	require.NoError(t, sub.EnsureGroup(ctx))

	_, err := pub.Publish(ctx, testEvent(t, domain.EventTypeAccountCreated))
	require.NoError(t, err)
	_, err = sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	failCreated = false
	_, err = pub.Publish(ctx, testEvent(t, domain.EventTypeDebited))
	require.NoError(t, err)

	acked, err := sub.ReadOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, acked)
	assert.Equal(t, []string{"account.created", "account.debited"}, seen)
}

func TestSubscriber_DropsMessageAfterMaxDeliveries(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	pub := NewPublisher(client, "account.events")

	var calls int
	sub := NewSubscriber(client, SubscriberConfig{
		Stream:        "account.events",
		Group:         "test",
		Consumer:      "c1",
		BlockDuration: 10 * time.Millisecond,
		MaxDeliveries: 3,
		Handler: func(context.Context, Event) error {
			calls++
			return errors.New("boom")
		},
	}, slog.Default())
	require.NoError(t, sub.EnsureGroup(ctx))

	_, err := pub.Publish(ctx, testEvent(t, domain.EventTypeDebited))
	require.NoError(t, err)

	for range 5 {
		_, err := sub.ReadOnce(ctx)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
	pending, err := client.XPending(ctx, "account.events", "test").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
