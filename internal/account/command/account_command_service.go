package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/utils"
	"github.com/eaglebank/swiftpay/internal/validation"
)

const conflictMessage = "Account with provided ID or account number exists."

type AccountWriter interface {
	Create(ctx context.Context, account *models.Account) error
}

type SecretHasher interface {
	Hash(secret string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// AccountCommandService creates accounts. A nil publisher disables events.
type AccountCommandService struct {
	repo      AccountWriter
	hasher    SecretHasher
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewAccountCommandService(repo AccountWriter, hasher SecretHasher, publisher Publisher, logger *slog.Logger) *AccountCommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountCommandService{
		repo:      repo,
		hasher:    hasher,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Register creates a client account.
func (s *AccountCommandService) Register(ctx context.Context, cmd cqrs.RegisterAccountCommand) (*models.Account, error) {
	return s.create(ctx, cmd.Name, cmd.Identity, cmd.AccountNumber, cmd.Secret, models.RoleClient)
}

// Provision creates an account with an explicit role. An account that already
// exists is left untouched and reported with created == false.
func (s *AccountCommandService) Provision(ctx context.Context, cmd cqrs.ProvisionAccountCommand) (account *models.Account, created bool, err error) {
	if !cmd.Role.Valid() {
		return nil, false, apperr.Validation("role", "Unknown role.")
	}
	account, err = s.create(ctx, cmd.Name, cmd.Identity, cmd.AccountNumber, cmd.Secret, cmd.Role)
	if apperr.KindOf(err) == apperr.KindConflict {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (s *AccountCommandService) create(ctx context.Context, name, identity, accountNumber, secret string, role models.Role) (*models.Account, error) {
	if err := validation.Registration(name, identity, accountNumber, secret); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}

	now := s.now().UTC()
	account := &models.Account{
		ID:            utils.GenerateID("acc"),
		Name:          strings.TrimSpace(name),
		Identity:      identity,
		AccountNumber: accountNumber,
		SecretHash:    hash,
		Role:          role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict(conflictMessage)
		}
		return nil, apperr.Unexpected(err)
	}

	s.logger.InfoContext(ctx, "account registered", "accountId", account.ID, "role", account.Role)
	s.publish(ctx, account)
	return account, nil
}

func (s *AccountCommandService) publish(ctx context.Context, account *models.Account) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.AccountEventsStream, events.AccountRegistered, events.AccountRegisteredEvent{
		AccountID:     account.ID,
		Name:          account.Name,
		AccountNumber: account.AccountNumber,
		Role:          string(account.Role),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish account.registered event", "accountId", account.ID, "error", err)
	}
}
