package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/josh-kwaku/account-ledger/internal/domain"
)

type Publisher struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Publish appends one outbox event to the stream and returns its entry id.
func (p *Publisher) Publish(ctx context.Context, ev domain.AccountEvent) (string, error) {
	envelope := Event{
		ID:        ev.ID.String(),
		Type:      string(ev.EventType),
		AccountID: ev.AccountID.String(),
		Timestamp: p.now(),
		Data:      ev.Payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("Publish: marshal event %s: %w", ev.ID, err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{messageField: body},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("Publish: xadd %s: %w", p.stream, err)
	}
	return id, nil
}
