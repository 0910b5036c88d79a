package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	accountrepo "github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/transaction/repository"
	"github.com/eaglebank/swiftpay/internal/utils"
	"github.com/eaglebank/swiftpay/internal/validation"
)

type TransactionWriter interface {
	Create(ctx context.Context, t *models.Transaction) error
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus, at time.Time) (*models.Transaction, error)
}

type AccountLookup interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// ViewCacher refreshes the read model after a mutation.
type ViewCacher interface {
	CacheView(ctx context.Context, view *models.TransactionView)
}

type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// TransactionCommandService owns the transaction lifecycle: clients submit,
// staff approve. Nil views or publisher disable those side effects.
type TransactionCommandService struct {
	writeRepo TransactionWriter
	accounts  AccountLookup
	views     ViewCacher
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewTransactionCommandService(
	writeRepo TransactionWriter,
	accounts AccountLookup,
	views ViewCacher,
	publisher Publisher,
	logger *slog.Logger,
) *TransactionCommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionCommandService{
		writeRepo: writeRepo,
		accounts:  accounts,
		views:     views,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit validates the instruction and records it as in_progress. Identical
// submissions are not deduplicated.
func (s *TransactionCommandService) Submit(ctx context.Context, cmd cqrs.SubmitTransactionCommand) (*models.Transaction, error) {
	if err := validation.Submission(cmd.Amount, cmd.Currency, cmd.Provider, cmd.RoutingCode); err != nil {
		s.logger.WarnContext(ctx, "transaction rejected", "accountId", cmd.ClientID, "field", apperr.As(err).Field)
		return nil, err
	}
	if err := validation.LedgerRecord(cmd.Amount, cmd.Currency, cmd.Provider, cmd.PayeeAccount, cmd.RoutingCode); err != nil {
		s.logger.WarnContext(ctx, "transaction rejected", "accountId", cmd.ClientID, "field", apperr.As(err).Field)
		return nil, err
	}

	owner, err := s.accounts.GetByID(ctx, cmd.ClientID)
	if errors.Is(err, accountrepo.ErrNotFound) {
		return nil, apperr.NotFound("Account not found.")
	}
	if err != nil {
		return nil, apperr.Unexpected(err)
	}

	now := s.now().UTC()
	t := &models.Transaction{
		ID:           utils.GenerateID("txn"),
		ClientRef:    owner.ID,
		Amount:       cmd.Amount,
		Currency:     cmd.Currency,
		Provider:     cmd.Provider,
		PayeeAccount: cmd.PayeeAccount,
		RoutingCode:  cmd.RoutingCode,
		Status:       models.StatusInProgress,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.writeRepo.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrOwnerNotFound) {
			return nil, apperr.NotFound("Account not found.")
		}
		return nil, apperr.Unexpected(err)
	}

	s.logger.InfoContext(ctx, "transaction created", "transactionId", t.ID, "accountId", owner.ID)
	s.refreshView(ctx, t, owner)
	s.publish(ctx, events.TransactionSubmitted, events.TransactionSubmittedEvent{
		TransactionID: t.ID,
		ClientRef:     t.ClientRef,
		Amount:        t.Amount,
		Currency:      t.Currency,
		RoutingCode:   t.RoutingCode,
	})
	return t, nil
}

// Approve marks the transaction approved. Approving an approved transaction
// succeeds and leaves it approved.
func (s *TransactionCommandService) Approve(ctx context.Context, cmd cqrs.ApproveTransactionCommand) (*models.Transaction, error) {
	t, err := s.writeRepo.UpdateStatus(ctx, cmd.TransactionID, models.StatusApproved, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.WarnContext(ctx, "approval of unknown transaction", "transactionId", cmd.TransactionID, "accountId", cmd.StaffID)
		return nil, apperr.NotFound("Transaction not found.")
	}
	if err != nil {
		return nil, apperr.Unexpected(err)
	}

	s.logger.InfoContext(ctx, "transaction approved", "transactionId", t.ID, "accountId", cmd.StaffID)
	if owner, err := s.accounts.GetByID(ctx, t.ClientRef); err == nil {
		s.refreshView(ctx, t, owner)
	}
	s.publish(ctx, events.TransactionApproved, events.TransactionApprovedEvent{
		TransactionID: t.ID,
		ClientRef:     t.ClientRef,
		ApprovedBy:    cmd.StaffID,
	})
	return t, nil
}

func (s *TransactionCommandService) refreshView(ctx context.Context, t *models.Transaction, owner *models.Account) {
	if s.views != nil {
		s.views.CacheView(ctx, models.NewTransactionView(t, owner.Summary()))
	}
}

func (s *TransactionCommandService) publish(ctx context.Context, eventType string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.TransactionEventsStream, eventType, data); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "eventType", eventType, "error", err)
	}
}
