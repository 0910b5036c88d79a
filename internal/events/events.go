package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountRegistered    = "account.registered"
	TransactionSubmitted = "transaction.submitted"
	TransactionApproved  = "transaction.approved"
)

// Stream names
const (
	AccountEventsStream     = "account.events"
	TransactionEventsStream = "transaction.events"
)

// Event is the envelope written to a stream. Data stays raw until a
// consumer decodes it into the payload type for Type.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

type AccountRegisteredEvent struct {
	AccountID     string `json:"accountId"`
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	Role          string `json:"role"`
}

type TransactionSubmittedEvent struct {
	TransactionID string          `json:"transactionId"`
	ClientRef     string          `json:"clientRef"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	RoutingCode   string          `json:"routingCode"`
}

type TransactionApprovedEvent struct {
	TransactionID string `json:"transactionId"`
	ClientRef     string `json:"clientRef"`
	ApprovedBy    string `json:"approvedBy"`
}
