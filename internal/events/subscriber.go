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
	Group    string
	Consumer string
	Stream   string
	Handler  Handler
	// BatchSize caps the messages read per poll. Defaults to 10.
	BatchSize int64
	// BlockDuration is how long a poll waits for new messages. Defaults to 5s.
	BlockDuration time.Duration
	// RetryDelay is the pause after a failed read. Defaults to 1s.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Subscriber consumes one stream as a member of a consumer group. A message
// is acknowledged only after its handler succeeds.
type Subscriber struct {
	client redis.UniversalClient
	cfg    SubscriberConfig
	logger *slog.Logger
}

func NewSubscriber(client redis.UniversalClient, cfg SubscriberConfig) *Subscriber {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client: client,
		cfg:    cfg,
		logger: logger.With("stream", cfg.Stream, "group", cfg.Group, "consumer", cfg.Consumer),
	}
}

// Start joins the group, retries anything this consumer left pending, then
// consumes new messages until ctx is done.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := s.ensureGroup(ctx); err != nil {
		return err
	}
	if n, err := s.Redeliver(ctx); err != nil {
		s.logger.Warn("pending redelivery failed", "error", err)
	} else if n > 0 {
		s.logger.Info("redelivered pending messages", "count", n)
	}

	s.logger.Info("subscriber started")
	for {
		if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("stream read failed", "error", err)
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			s.logger.Info("subscriber stopping")
			return ctx.Err()
		}
	}
}

func (s *Subscriber) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Poll reads one batch of new messages and returns how many were
// acknowledged. Messages whose handler fails stay pending.
func (s *Subscriber) Poll(ctx context.Context) (int, error) {
	return s.read(ctx, ">", s.cfg.BlockDuration)
}

// Redeliver hands this consumer's pending messages to the handler again.
func (s *Subscriber) Redeliver(ctx context.Context) (int, error) {
	return s.read(ctx, "0", 0)
}

func (s *Subscriber) read(ctx context.Context, from string, block time.Duration) (int, error) {
	args := &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, from},
		Count:    s.cfg.BatchSize,
		Block:    block,
	}
	if block == 0 {
		// go-redis treats a zero Block as "block forever".
		args.Block = -1
	}

	res, err := s.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read from stream: %w", err)
	}

	acked := 0
	for _, stream := range res {
		for _, msg := range stream.Messages {
			if err := s.handle(ctx, msg); err != nil {
				s.logger.Warn("event handler failed", "messageId", msg.ID, "error", err)
				continue
			}
			if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, msg.ID).Err(); err != nil {
				s.logger.Warn("ack failed", "messageId", msg.ID, "error", err)
				continue
			}
			acked++
		}
	}
	return acked, nil
}

func (s *Subscriber) handle(ctx context.Context, msg redis.XMessage) error {
	raw, ok := msg.Values[messageField].(string)
	if !ok {
		return fmt.Errorf("message %s has no %q field", msg.ID, messageField)
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return s.cfg.Handler(ctx, event)
}
