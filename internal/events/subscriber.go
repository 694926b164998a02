package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

type SubscriberConfig struct {
	Stream        string
	Group         string
	Consumer      string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
	// MaxDeliveries bounds how often one message is handed to Handler before
	// it is acked and dropped.
	MaxDeliveries int64
}

// Subscriber reads a stream through a consumer group. Messages are acked only
// after the handler succeeds. A failed message stays in this consumer's
// pending list and is handed to the handler again, ahead of new messages, on
// every later read until it succeeds or runs out of deliveries. Consumer names
// must be stable across restarts for that list to be picked up again.
type Subscriber struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
	maxDeliveries int64
	logger        *slog.Logger
}

func NewSubscriber(client *redis.Client, cfg SubscriberConfig, logger *slog.Logger) *Subscriber {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration == 0 {
		cfg.BlockDuration = 2 * time.Second
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 5
	}

	return &Subscriber{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumer:      cfg.Consumer,
		handler:       cfg.Handler,
		batchSize:     cfg.BatchSize,
		blockDuration: cfg.BlockDuration,
		maxDeliveries: cfg.MaxDeliveries,
		logger:        logger,
	}
}

// EnsureGroup creates the consumer group (and the stream) if needed.
func (s *Subscriber) EnsureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("EnsureGroup: %w", err)
	}
	return nil
}

func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.EnsureGroup(ctx); err != nil {
		return err
	}

	s.logger.Info("subscriber started", "stream", s.stream, "group", s.group, "consumer", s.consumer)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriber stopped", "stream", s.stream)
			return nil
		default:
		}

		if _, err := s.ReadOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("failed to read stream", "stream", s.stream, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ReadOnce retries this consumer's pending messages, then reads and handles
// one batch of new ones. It returns how many messages were acknowledged.
func (s *Subscriber) ReadOnce(ctx context.Context) (int, error) {
	acked, err := s.retryPending(ctx)
	if err != nil {
		return acked, err
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return acked, nil
	}
	if err != nil {
		return acked, fmt.Errorf("ReadOnce: %w", err)
	}

	return acked + s.handleAll(ctx, streams), nil
}

func (s *Subscriber) retryPending(ctx context.Context) (int, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   s.stream,
		Group:    s.group,
		Start:    "-",
		End:      "+",
		Count:    s.batchSize,
		Consumer: s.consumer,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("retryPending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	for _, p := range pending {
		if p.RetryCount < s.maxDeliveries {
			continue
		}
		s.logger.Error("dropping stream message after repeated failures",
			"message_id", p.ID,
			"deliveries", p.RetryCount,
		)
		if err := s.client.XAck(ctx, s.stream, s.group, p.ID).Err(); err != nil {
			return 0, fmt.Errorf("retryPending: ack %s: %w", p.ID, err)
		}
	}

	// an explicit ID reads this consumer's pending list and never blocks
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, "0"},
		Count:    s.batchSize,
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("retryPending: %w", err)
	}
	return s.handleAll(ctx, streams), nil
}

func (s *Subscriber) handleAll(ctx context.Context, streams []redis.XStream) int {
	acked := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := s.process(ctx, msg); err != nil {
				s.logger.Warn("failed to handle stream message", "message_id", msg.ID, "error", err)
				continue
			}
			if err := s.client.XAck(ctx, s.stream, s.group, msg.ID).Err(); err != nil {
				s.logger.Error("failed to ack stream message", "message_id", msg.ID, "error", err)
				continue
			}
			acked++
		}
	}
	return acked
}

func (s *Subscriber) process(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values[messageField].(string)
	if !ok {
		return fmt.Errorf("message %s has no %q field", msg.ID, messageField)
	}

	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return fmt.Errorf("unmarshal message %s: %w", msg.ID, err)
	}
	return s.handler(ctx, ev)
}
