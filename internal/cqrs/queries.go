package cqrs

import "github.com/eaglebank/swiftpay/internal/models"

// ---------- Transaction queries ----------

// ListTransactionsQuery fetches every transaction, optionally narrowed to one
// status. An empty Status means all.
type ListTransactionsQuery struct {
	Status           models.TransactionStatus
	RequestingUserID string
}

// GetTransactionQuery fetches a single transaction with its owner resolved.
type GetTransactionQuery struct {
	TransactionID    string
	RequestingUserID string
}
