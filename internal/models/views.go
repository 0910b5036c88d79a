package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSummary is the owner projection attached to transaction views.
// It never exposes identity or the secret hash.
type AccountSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
}

// TransactionView is the read-optimised projection of a transaction used by
// staff listings, with the owning account resolved.
type TransactionView struct {
	ID           string            `json:"id"`
	Client       AccountSummary    `json:"client"`
	Amount       decimal.Decimal   `json:"amount"`
	Currency     string            `json:"currency"`
	Provider     string            `json:"provider"`
	PayeeAccount string            `json:"payeeAccount"`
	RoutingCode  string            `json:"routingCode"`
	Status       TransactionStatus `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// NewTransactionView joins a transaction with its owner.
func NewTransactionView(t *Transaction, owner AccountSummary) *TransactionView {
	return &TransactionView{
		ID:           t.ID,
		Client:       owner,
		Amount:       t.Amount,
		Currency:     t.Currency,
		Provider:     t.Provider,
		PayeeAccount: t.PayeeAccount,
		RoutingCode:  t.RoutingCode,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Name: a.Name, AccountNumber: a.AccountNumber}
}
