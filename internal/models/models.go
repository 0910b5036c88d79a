package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, matching what clients submit.
	decimal.MarshalJSONWithoutQuotes = true
}

type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RoleStaff
}

type TransactionStatus string

const (
	StatusInProgress TransactionStatus = "in_progress"
	StatusApproved   TransactionStatus = "approved"
)

func (s TransactionStatus) Valid() bool {
	return s == StatusInProgress || s == StatusApproved
}

// ProviderSWIFT is the only payment rail currently accepted.
const ProviderSWIFT = "SWIFT"

type Account struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Identity      string    `json:"identity"`
	AccountNumber string    `json:"accountNumber"`
	SecretHash    string    `json:"-"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Transaction struct {
	ID           string            `json:"id"`
	ClientRef    string            `json:"clientRef"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	Provider     string            `json:"provider"`
	PayeeAccount string            `json:"payeeAccount"`
	RoutingCode  string            `json:"routingCode"`
	Status       TransactionStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
