package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// messageField holds the JSON envelope in every stream entry.
const messageField = "event"

// Publisher appends event envelopes to Redis streams.
type Publisher struct {
	client redis.UniversalClient
	now    func() time.Time
	// maxLen trims streams approximately to this length; zero keeps all.
	maxLen int64
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client, now: time.Now}
}

// WithMaxLen returns a copy of p that caps each stream near n entries.
func (p *Publisher) WithMaxLen(n int64) *Publisher {
	cp := *p
	cp.maxLen = n
	return &cp
}

// Publish wraps data in an Event of eventType and appends it to stream.
func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	envelope, err := json.Marshal(Event{Type: eventType, Timestamp: p.now().UTC(), Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: map[string]any{messageField: string(envelope)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, stream, err)
	}
	return nil
}
