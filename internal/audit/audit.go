// Package audit consumes the account and transaction streams and records
// each domain event as a structured audit log line.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/redis/go-redis/v9"
)

const consumerGroup = "audit"

type Recorder struct {
	logger *slog.Logger
}

func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger.With("component", "audit")}
}

// HandleEvent satisfies events.Handler.
func (r *Recorder) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.AccountRegistered:
		var e events.AccountRegisteredEvent
		if err := event.Decode(&e); err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "account registered",
			"accountId", e.AccountID,
			"accountNumber", e.AccountNumber,
			"role", e.Role,
			"at", event.Timestamp)
	case events.TransactionSubmitted:
		var e events.TransactionSubmittedEvent
		if err := event.Decode(&e); err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "transaction submitted",
			"transactionId", e.TransactionID,
			"accountId", e.ClientRef,
			"amount", e.Amount.String(),
			"currency", e.Currency,
			"routingCode", e.RoutingCode,
			"at", event.Timestamp)
	case events.TransactionApproved:
		var e events.TransactionApprovedEvent
		if err := event.Decode(&e); err != nil {
			return err
		}
		r.logger.InfoContext(ctx, "transaction approved",
			"transactionId", e.TransactionID,
			"accountId", e.ClientRef,
			"approvedBy", e.ApprovedBy,
			"at", event.Timestamp)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
	return nil
}

// Subscribers returns one stream subscriber per audited stream, all sharing
// the audit consumer group.
func (r *Recorder) Subscribers(client redis.UniversalClient, consumer string) []*events.Subscriber {
	streams := []string{events.AccountEventsStream, events.TransactionEventsStream}
	subs := make([]*events.Subscriber, 0, len(streams))
	for _, stream := range streams {
		subs = append(subs, events.NewSubscriber(client, events.SubscriberConfig{
			Group:    consumerGroup,
			Consumer: consumer,
			Stream:   stream,
			Handler:  r.HandleEvent,
			Logger:   r.logger,
		}))
	}
	return subs
}
