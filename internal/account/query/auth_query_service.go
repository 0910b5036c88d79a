package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/ratelimit"
)

const lockedOutMessage = "Too many failed login attempts. Please try again later."

type AccountReader interface {
	GetByCredentials(ctx context.Context, identity, accountNumber string) (*models.Account, error)
}

type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

type TokenIssuer interface {
	Issue(accountID string, role models.Role) (string, time.Time, error)
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

// AuthQueryService verifies credentials and issues session tokens. Login
// attempts are throttled per identity and per client IP when a brute-force
// tracker is configured.
type AuthQueryService struct {
	repo       AccountReader
	hasher     SecretHasher
	issuer     TokenIssuer
	bruteForce ratelimit.BruteForce
	logger     *slog.Logger
	dummyHash  string
}

func NewAuthQueryService(repo AccountReader, hasher SecretHasher, issuer TokenIssuer, bruteForce ratelimit.BruteForce, logger *slog.Logger) (*AuthQueryService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Compared against when the account is unknown so both failure paths
	// cost one hash comparison.
	dummy, err := hasher.Hash("unused-Placeholder-0")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential check: %w", err)
	}
	return &AuthQueryService{
		repo:       repo,
		hasher:     hasher,
		issuer:     issuer,
		bruteForce: bruteForce,
		logger:     logger,
		dummyHash:  dummy,
	}, nil
}

// VerifyCredentials returns the account when identity, account number and
// secret all match. Unknown accounts and wrong secrets both yield
// apperr.ErrInvalidCredentials.
func (s *AuthQueryService) VerifyCredentials(ctx context.Context, identity, accountNumber, secret string) (*models.Account, error) {
	account, err := s.repo.GetByCredentials(ctx, identity, accountNumber)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Compare(s.dummyHash, secret)
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	if !s.hasher.Compare(account.SecretHash, secret) {
		return nil, apperr.ErrInvalidCredentials
	}
	return account, nil
}

// Login reserves an attempt on every abuse key before the secret is
// compared, so concurrent guesses cannot all slip past the lockout. A
// successful login clears the counters.
func (s *AuthQueryService) Login(ctx context.Context, cmd cqrs.LoginCommand) (*LoginResult, error) {
	keys := attemptKeys(cmd)
	if err := s.reserveAttempt(ctx, keys); err != nil {
		return nil, err
	}

	account, err := s.VerifyCredentials(ctx, cmd.Identity, cmd.AccountNumber, cmd.Secret)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalidCredentials {
			s.logger.WarnContext(ctx, "login failed", "clientIp", cmd.ClientIP)
		}
		return nil, err
	}
	s.resetAttempts(ctx, keys)

	token, expiresAt, err := s.issuer.Issue(account.ID, account.Role)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	s.logger.InfoContext(ctx, "login succeeded", "accountId", account.ID, "role", account.Role)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

func attemptKeys(cmd cqrs.LoginCommand) []string {
	keys := []string{"login:identity:" + cmd.Identity}
	if cmd.ClientIP != "" {
		keys = append(keys, "login:ip:"+cmd.ClientIP)
	}
	return keys
}

// reserveAttempt counts the attempt against each key and rejects it when any
// key is locked out. A store failure rejects the login.
func (s *AuthQueryService) reserveAttempt(ctx context.Context, keys []string) error {
	if s.bruteForce == nil {
		return nil
	}
	var longest time.Duration
	for _, key := range keys {
		wait, err := s.bruteForce.Attempt(ctx, key)
		if err != nil {
			return apperr.Unexpected(err)
		}
		if wait > longest {
			longest = wait
		}
	}
	if longest > 0 {
		s.logger.WarnContext(ctx, "login locked out", "retryAfter", longest)
		return apperr.RateLimited(lockedOutMessage, longest)
	}
	return nil
}

func (s *AuthQueryService) resetAttempts(ctx context.Context, keys []string) {
	if s.bruteForce == nil {
		return
	}
	for _, key := range keys {
		if err := s.bruteForce.Reset(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to reset login attempts", "error", err)
		}
	}
}
