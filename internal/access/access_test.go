package access

import (
	"errors"
	"testing"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/models"
)

func TestDefaultPolicy(t *testing.T) {
	tests := []struct {
		role    models.Role
		op      Operation
		allowed bool
	}{
		{models.RoleClient, SubmitTransaction, true},
		{models.RoleStaff, SubmitTransaction, false},
		{models.RoleClient, ListTransactions, false},
		{models.RoleStaff, ListTransactions, true},
		{models.RoleClient, GetTransaction, false},
		{models.RoleStaff, GetTransaction, true},
		{models.RoleClient, ApproveTransaction, false},
		{models.RoleStaff, ApproveTransaction, true},
		{models.Role("admin"), ApproveTransaction, false},
		{models.RoleStaff, Operation("deleteTransaction"), false},
	}
	for _, tt := range tests {
		err := DefaultPolicy.Authorize(tt.role, tt.op)
		if tt.allowed && err != nil {
			t.Errorf("%s on %s: expected allowed, got %v", tt.role, tt.op, err)
		}
		if !tt.allowed && !errors.Is(err, apperr.ErrForbidden) {
			t.Errorf("%s on %s: expected forbidden, got %v", tt.role, tt.op, err)
		}
	}
}
