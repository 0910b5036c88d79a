package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/eaglebank/swiftpay/internal/account/command"
	"github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/ratelimit"
	"github.com/eaglebank/swiftpay/internal/token"
	"github.com/eaglebank/swiftpay/internal/utils"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	auth    *AuthQueryService
	account *models.Account
	tokens  *token.Manager
}

func newFixture(t *testing.T, bf ratelimit.BruteForce) fixture {
	t.Helper()
	repo := repository.NewMemoryAccountRepository()
	hasher := utils.NewBcryptHasher(bcrypt.MinCost)
	cmds := command.NewAccountCommandService(repo, hasher, nil, nil)
	account, err := cmds.Register(context.Background(), cqrs.RegisterAccountCommand{
		Name: "Ada", Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456",
	})
	if err != nil {
		t.Fatal(err)
	}
	tokens, err := token.NewManager(token.Config{Secret: []byte("query-test-secret")})
	if err != nil {
		t.Fatal(err)
	}
	auth, err := NewAuthQueryService(repo, hasher, tokens, bf, nil)
	if err != nil {
		t.Fatal(err)
	}
	return fixture{auth: auth, account: account, tokens: tokens}
}

func TestVerifyCredentials(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	got, err := f.auth.VerifyCredentials(ctx, "1234567890123", "1234567890", "MySecPass456")
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if got.ID != f.account.ID {
		t.Errorf("expected account %s, got %s", f.account.ID, got.ID)
	}

	tests := []struct {
		name, identity, accountNumber, secret string
	}{
		{"wrong secret", "1234567890123", "1234567890", "MySecPass457"},
		{"unknown identity", "9999999999999", "1234567890", "MySecPass456"},
		{"mismatched account number", "1234567890123", "0000000000", "MySecPass456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.VerifyCredentials(ctx, tt.identity, tt.accountNumber, tt.secret)
			if !errors.Is(err, apperr.ErrInvalidCredentials) {
				t.Fatalf("expected invalid credentials, got %v", err)
			}
		})
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.auth.Login(context.Background(), cqrs.LoginCommand{
		Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456", ClientIP: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := f.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != f.account.ID || claims.Role != models.RoleClient {
		t.Errorf("unexpected claims %+v", claims)
	}
	if d := time.Until(res.ExpiresAt); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("expected token to expire in about an hour, got %v", d)
	}
}

func TestLoginLockout(t *testing.T) {
	bf := ratelimit.NewMemoryBruteForce(ratelimit.BruteForceConfig{
		FreeRetries: 2, MinWait: time.Minute, MaxWait: time.Minute, Lifetime: time.Hour,
	})
	f := newFixture(t, bf)
	ctx := context.Background()
	bad := cqrs.LoginCommand{Identity: "1234567890123", AccountNumber: "1234567890", Secret: "Wrong1234", ClientIP: "10.0.0.9"}

	for i := 0; i < 2; i++ {
		if _, err := f.auth.Login(ctx, bad); !errors.Is(err, apperr.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	good := bad
	good.Secret = "MySecPass456"
	_, err := f.auth.Login(ctx, good)
	appErr := apperr.As(err)
	if appErr.Kind != apperr.KindRateLimited {
		t.Fatalf("expected lockout after free retries, got %v", err)
	}
	if appErr.RetryAfter <= 0 || appErr.RetryAfter > time.Minute {
		t.Errorf("unexpected retry after %v", appErr.RetryAfter)
	}
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	bf := ratelimit.NewMemoryBruteForce(ratelimit.BruteForceConfig{
		FreeRetries: 2, MinWait: time.Minute, MaxWait: time.Minute, Lifetime: time.Hour,
	})
	f := newFixture(t, bf)
	ctx := context.Background()
	cmd := cqrs.LoginCommand{Identity: "1234567890123", AccountNumber: "1234567890", Secret: "Wrong1234"}

	if _, err := f.auth.Login(ctx, cmd); err == nil {
		t.Fatal("expected failure")
	}
	cmd.Secret = "MySecPass456"
	if _, err := f.auth.Login(ctx, cmd); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if wait, _ := bf.Check(ctx, "login:identity:1234567890123"); wait != 0 {
		t.Errorf("expected counters reset, still waiting %v", wait)
	}
}

type failingBruteForce struct{}

func (failingBruteForce) Attempt(context.Context, string) (time.Duration, error) {
	return 0, ratelimit.ErrBackendUnavailable
}
func (failingBruteForce) Check(context.Context, string) (time.Duration, error) {
	return 0, ratelimit.ErrBackendUnavailable
}
func (failingBruteForce) Reset(context.Context, string) error { return nil }

func TestLoginFailsClosedWhenTrackerUnavailable(t *testing.T) {
	f := newFixture(t, failingBruteForce{})
	_, err := f.auth.Login(context.Background(), cqrs.LoginCommand{
		Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456",
	})
	if apperr.KindOf(err) != apperr.KindUnexpected {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

// countingHasher counts how many guesses reach the secret comparison.
type countingHasher struct {
	utils.BcryptHasher
	compares atomic.Int32
}

func (h *countingHasher) Compare(hash, secret string) bool {
	h.compares.Add(1)
	return h.BcryptHasher.Compare(hash, secret)
}

func TestConcurrentGuessesRespectFreeRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	trackers := map[string]ratelimit.BruteForce{
		"memory": ratelimit.NewMemoryBruteForce(ratelimit.DefaultBruteForce),
		"redis":  ratelimit.NewRedisBruteForce(rdb, ratelimit.DefaultBruteForce),
	}
	for name, bf := range trackers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := repository.NewMemoryAccountRepository()
			// Default cost keeps each comparison slow enough for guesses to overlap.
			hasher := &countingHasher{BcryptHasher: utils.NewBcryptHasher(bcrypt.DefaultCost)}
			cmds := command.NewAccountCommandService(repo, hasher, nil, nil)
			if _, err := cmds.Register(ctx, cqrs.RegisterAccountCommand{
				Name: "Ada", Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456",
			}); err != nil {
				t.Fatal(err)
			}
			tokens, err := token.NewManager(token.Config{Secret: []byte("query-test-secret")})
			if err != nil {
				t.Fatal(err)
			}
			auth, err := NewAuthQueryService(repo, hasher, tokens, bf, nil)
			if err != nil {
				t.Fatal(err)
			}

			var wg sync.WaitGroup
			var limited atomic.Int32
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := auth.Login(ctx, cqrs.LoginCommand{
						Identity: "1234567890123", AccountNumber: "1234567890", Secret: "Wrong1234", ClientIP: "10.0.0.7",
					})
					if apperr.KindOf(err) == apperr.KindRateLimited {
						limited.Add(1)
					}
				}()
			}
			wg.Wait()

			free := int32(ratelimit.DefaultBruteForce.FreeRetries)
			if got := hasher.compares.Load(); got != free {
				t.Errorf("expected %d guesses to reach the comparison, got %d", free, got)
			}
			if got := limited.Load(); got != 50-free {
				t.Errorf("expected %d guesses locked out, got %d", 50-free, got)
			}
		})
	}
}
