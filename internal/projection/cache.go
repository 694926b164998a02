// Package projection maintains an eventually consistent read model of
// accounts in Redis, built only from the published event stream.
package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache stores JSON views of type T under a key prefix. A zero ttl keeps
// keys forever.
type ViewCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewViewCache[T any](client *redis.Client, prefix string, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl}
}

func (c *ViewCache[T]) key(id string) string {
	return c.prefix + id
}

// Get returns (nil, false, nil) on a miss.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (*T, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ViewCache.Get %s: %w", id, err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false, fmt.Errorf("ViewCache.Get %s: decode: %w", id, err)
	}
	return &v, true, nil
}

func (c *ViewCache[T]) Set(ctx context.Context, id string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ViewCache.Set %s: encode: %w", id, err)
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ViewCache.Set %s: %w", id, err)
	}
	return nil
}

func (c *ViewCache[T]) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("ViewCache.Delete %s: %w", id, err)
	}
	return nil
}
