// Package validation holds the field rules for accounts and transactions.
// The same rules back the services and the request validator tags, so an
// input rejected at the HTTP edge is rejected for the same reason in the
// provisioning CLI.
package validation

import (
	"regexp"
	"strings"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/shopspring/decimal"
)

var (
	identityPattern      = regexp.MustCompile(`^[0-9]{13}$`)
	accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)
	payeeAccountPattern  = regexp.MustCompile(`^[0-9]{10,}$`)
	routingCodePattern   = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
)

const (
	minSecretLength = 8
	// bcrypt ignores input past 72 bytes.
	maxSecretBytes = 72
	// amounts are stored as NUMERIC(18, 2)
	amountScale = 2
)

// maxAmount is the first value that no longer fits 16 integer digits.
var maxAmount = decimal.New(1, 16)

// SubmittableCurrencies are accepted when a client submits a payment.
var SubmittableCurrencies = []string{"USD", "EUR", "AUD", "CAD", "GBP"}

// StorableCurrencies are accepted by the ledger. ZAR is storable but cannot
// be submitted.
var StorableCurrencies = []string{"USD", "EUR", "AUD", "CAD", "GBP", "ZAR"}

func IsIdentity(s string) bool      { return identityPattern.MatchString(s) }
func IsAccountNumber(s string) bool { return accountNumberPattern.MatchString(s) }
func IsPayeeAccount(s string) bool  { return payeeAccountPattern.MatchString(s) }
func IsRoutingCode(s string) bool   { return routingCodePattern.MatchString(s) }

// IsStrongSecret requires at least 8 characters with an ASCII uppercase
// letter, an ASCII lowercase letter and an ASCII digit.
func IsStrongSecret(s string) bool {
	if len([]rune(s)) < minSecretLength || len(s) > maxSecretBytes {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

// IsValidAmount accepts positive amounts with at most two decimal places and
// at most 16 integer digits.
func IsValidAmount(d decimal.Decimal) bool {
	if !d.IsPositive() || d.GreaterThanOrEqual(maxAmount) {
		return false
	}
	return d.Equal(d.Truncate(amountScale))
}

func IsSubmittableCurrency(s string) bool { return contains(SubmittableCurrencies, s) }
func IsStorableCurrency(s string) bool    { return contains(StorableCurrencies, s) }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Field failure messages, keyed by wire name. The request validator reports
// the same text as the services.
var messages = map[string]string{
	"name":          "Name is required.",
	"identity":      "Invalid ID format.",
	"accountNumber": "Invalid account number format.",
	"secret":        "Password must be strong and contain uppercase, lowercase, and digits.",
	"amount":        "Invalid total amount.",
	"currency":      "Unsupported currency type.",
	"provider":      "Unsupported service provider.",
	"payeeAccount":  "Invalid payee account number.",
	"routingCode":   "Invalid routing code.",
	"status":        "Unknown transaction status.",
}

// Message returns the failure message for field.
func Message(field string) string {
	if m, ok := messages[field]; ok {
		return m
	}
	return "Invalid value."
}

func fail(field string) error {
	return apperr.Validation(field, Message(field))
}

// Registration checks the account fields in order and returns the first
// failure.
func Registration(name, identity, accountNumber, secret string) error {
	if strings.TrimSpace(name) == "" {
		return fail("name")
	}
	if !IsIdentity(identity) {
		return fail("identity")
	}
	if !IsAccountNumber(accountNumber) {
		return fail("accountNumber")
	}
	if !IsStrongSecret(secret) {
		return fail("secret")
	}
	return nil
}

// Submission applies the payment submission checks in order: amount,
// currency, provider, routing code.
func Submission(amount decimal.Decimal, currency, provider, routingCode string) error {
	if !IsValidAmount(amount) {
		return fail("amount")
	}
	if !IsSubmittableCurrency(currency) {
		return fail("currency")
	}
	if provider != models.ProviderSWIFT {
		return fail("provider")
	}
	if !IsRoutingCode(routingCode) {
		return fail("routingCode")
	}
	return nil
}

// LedgerRecord enforces the storage-level rules every persisted transaction
// must satisfy, independent of how it was submitted.
func LedgerRecord(amount decimal.Decimal, currency, provider, payeeAccount, routingCode string) error {
	if !IsValidAmount(amount) {
		return fail("amount")
	}
	if !IsStorableCurrency(currency) {
		return fail("currency")
	}
	if provider != models.ProviderSWIFT {
		return fail("provider")
	}
	if !IsPayeeAccount(payeeAccount) {
		return fail("payeeAccount")
	}
	if !IsRoutingCode(routingCode) {
		return fail("routingCode")
	}
	return nil
}
