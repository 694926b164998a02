// Package events carries account events over Redis Streams.
package events

import (
	"encoding/json"
	"time"
)

// Event is the envelope written to the stream. Data is the outbox payload
// exactly as stored, so consumers see the same JSON the engine produced.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	AccountID string          `json:"account_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

const messageField = "event"
