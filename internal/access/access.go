// Package access holds the role policy for every protected operation.
package access

import (
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/models"
)

type Operation string

const (
	SubmitTransaction  Operation = "submitTransaction"
	ListTransactions   Operation = "listTransactions"
	GetTransaction     Operation = "getTransaction"
	ApproveTransaction Operation = "approveTransaction"
)

// Policy maps an operation to the roles allowed to perform it. Operations
// missing from the table are denied.
type Policy map[Operation][]models.Role

// DefaultPolicy: clients submit payments, staff review and approve them.
var DefaultPolicy = Policy{
	SubmitTransaction:  {models.RoleClient},
	ListTransactions:   {models.RoleStaff},
	GetTransaction:     {models.RoleStaff},
	ApproveTransaction: {models.RoleStaff},
}

// Authorize returns apperr.ErrForbidden unless role may perform op.
func (p Policy) Authorize(role models.Role, op Operation) error {
	for _, allowed := range p[op] {
		if allowed == role {
			return nil
		}
	}
	return apperr.ErrForbidden
}
