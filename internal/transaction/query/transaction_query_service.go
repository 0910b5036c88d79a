package query

import (
	"context"
	"errors"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/transaction/repository"
)

type TransactionReader interface {
	Each(ctx context.Context, filter repository.ListFilter, fn func(*models.TransactionView) error) error
	GetView(ctx context.Context, id string) (*models.TransactionView, error)
}

// TransactionQueryService serves the staff views of the ledger. Role checks
// happen before these calls.
type TransactionQueryService struct {
	readRepo TransactionReader
}

func NewTransactionQueryService(readRepo TransactionReader) *TransactionQueryService {
	return &TransactionQueryService{readRepo: readRepo}
}

func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, apperr.Validation("status", "Unknown transaction status.")
	}

	views := []models.TransactionView{}
	err := s.readRepo.Each(ctx, repository.ListFilter{Status: string(q.Status)}, func(v *models.TransactionView) error {
		views = append(views, *v)
		return nil
	})
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	return views, nil
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.TransactionView, error) {
	view, err := s.readRepo.GetView(ctx, q.TransactionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Transaction not found.")
	}
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	return view, nil
}
