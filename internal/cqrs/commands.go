package cqrs

import (
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/shopspring/decimal"
)

type RegisterAccountCommand struct {
	Name          string
	Identity      string
	AccountNumber string
	Secret        string
}

// ProvisionAccountCommand is the administrative variant of registration with
// an explicit role. It is only issued by the provisioning CLI.
type ProvisionAccountCommand struct {
	Name          string
	Identity      string
	AccountNumber string
	Secret        string
	Role          models.Role
}

type LoginCommand struct {
	Identity      string
	AccountNumber string
	Secret        string
	ClientIP      string
}

type SubmitTransactionCommand struct {
	ClientID     string
	Amount       decimal.Decimal
	Currency     string
	Provider     string
	PayeeAccount string
	RoutingCode  string
}

type ApproveTransactionCommand struct {
	TransactionID string
	StaffID       string
}
