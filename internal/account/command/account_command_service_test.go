package command

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type publishedEvent struct {
	stream, eventType string
	data              any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{stream, eventType, data})
	return m.err
}

type mockWriter struct {
	createFn func(*models.Account) error
}

func (m *mockWriter) Create(_ context.Context, a *models.Account) error { return m.createFn(a) }

func newService(pub Publisher) (*AccountCommandService, *repository.MemoryAccountRepository) {
	repo := repository.NewMemoryAccountRepository()
	return NewAccountCommandService(repo, utils.NewBcryptHasher(bcrypt.MinCost), pub, nil), repo
}

func validRegistration() cqrs.RegisterAccountCommand {
	return cqrs.RegisterAccountCommand{
		Name:          "  Ada Lovelace ",
		Identity:      "1234567890123",
		AccountNumber: "1234567890",
		Secret:        "MySecPass456",
	}
}

func TestRegister(t *testing.T) {
	pub := &mockPublisher{}
	svc, repo := newService(pub)

	account, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Role != models.RoleClient {
		t.Errorf("expected client role, got %s", account.Role)
	}
	if account.Name != "Ada Lovelace" {
		t.Errorf("expected trimmed name, got %q", account.Name)
	}
	if account.SecretHash == "MySecPass456" || bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte("MySecPass456")) != nil {
		t.Error("secret must be stored as a bcrypt hash")
	}

	stored, err := repo.GetByID(context.Background(), account.ID)
	if err != nil || stored.Identity != "1234567890123" {
		t.Fatalf("expected stored account, got %+v %v", stored, err)
	}

	if len(pub.events) != 1 || pub.events[0].eventType != events.AccountRegistered || pub.events[0].stream != events.AccountEventsStream {
		t.Fatalf("expected one account.registered event, got %+v", pub.events)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*cqrs.RegisterAccountCommand)
		wantField string
	}{
		{"short identity", func(c *cqrs.RegisterAccountCommand) { c.Identity = "123" }, "identity"},
		{"nine digit account", func(c *cqrs.RegisterAccountCommand) { c.AccountNumber = "123456789" }, "accountNumber"},
		{"weak secret", func(c *cqrs.RegisterAccountCommand) { c.Secret = "password" }, "secret"},
		{"blank name", func(c *cqrs.RegisterAccountCommand) { c.Name = " " }, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			svc, _ := newService(pub)
			cmd := validRegistration()
			tt.mutate(&cmd)

			_, err := svc.Register(context.Background(), cmd)
			if !errors.Is(err, apperr.Validation(tt.wantField, "")) {
				t.Fatalf("expected validation error on %s, got %v", tt.wantField, err)
			}
			if len(pub.events) != 0 {
				t.Error("no event may be published for a rejected registration")
			}
		})
	}
}

func TestRegisterConflict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*cqrs.RegisterAccountCommand)
	}{
		{"same identity, new account number", func(c *cqrs.RegisterAccountCommand) { c.AccountNumber = "0987654321" }},
		{"same account number, new identity", func(c *cqrs.RegisterAccountCommand) { c.Identity = "3210987654321" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(nil)
			if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
				t.Fatal(err)
			}
			cmd := validRegistration()
			tt.mutate(&cmd)
			_, err := svc.Register(context.Background(), cmd)
			if apperr.KindOf(err) != apperr.KindConflict {
				t.Fatalf("expected conflict, got %v", err)
			}
		})
	}
}

func TestConcurrentDuplicateRegistration(t *testing.T) {
	svc, _ := newService(nil)
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(context.Background(), validRegistration())
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected exactly one success, got %d successes and %d conflicts", ok, conflicts)
	}
}

func TestRegisterStoreFailureIsUnexpected(t *testing.T) {
	svc := NewAccountCommandService(&mockWriter{createFn: func(*models.Account) error {
		return errors.New("connection refused")
	}}, utils.NewBcryptHasher(bcrypt.MinCost), nil, nil)

	_, err := svc.Register(context.Background(), validRegistration())
	if apperr.KindOf(err) != apperr.KindUnexpected {
		t.Fatalf("expected unexpected error, got %v", err)
	}
}

func TestRegisterSurvivesPublishFailure(t *testing.T) {
	svc, _ := newService(&mockPublisher{err: errors.New("redis down")})
	if _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("publish failures must not fail registration: %v", err)
	}
}

func TestProvision(t *testing.T) {
	svc, _ := newService(nil)
	ctx := context.Background()
	cmd := cqrs.ProvisionAccountCommand{
		Name:          "Grace Hopper",
		Identity:      "9876543210987",
		AccountNumber: "5555555555",
		Secret:        "StaffPass1",
		Role:          models.RoleStaff,
	}

	account, created, err := svc.Provision(ctx, cmd)
	if err != nil || !created {
		t.Fatalf("expected account to be created, got created=%v err=%v", created, err)
	}
	if account.Role != models.RoleStaff {
		t.Errorf("expected staff role, got %s", account.Role)
	}

	_, created, err = svc.Provision(ctx, cmd)
	if err != nil || created {
		t.Fatalf("expected existing account to be skipped, got created=%v err=%v", created, err)
	}

	cmd.Role = "admin"
	cmd.Identity, cmd.AccountNumber = "1111111111111", "1111111111"
	if _, _, err := svc.Provision(ctx, cmd); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}
