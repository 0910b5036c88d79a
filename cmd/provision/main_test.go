package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	accountcmd "github.com/eaglebank/swiftpay/internal/account/command"
	accountrepo "github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() (*accountcmd.AccountCommandService, *accountrepo.MemoryAccountRepository) {
	repo := accountrepo.NewMemoryAccountRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return accountcmd.NewAccountCommandService(repo, utils.NewBcryptHasher(bcrypt.MinCost), nil, logger), repo
}

func TestProvisionCreatesSkipsAndFails(t *testing.T) {
	svc, repo := newTestService()
	entries := []accountEntry{
		{Name: "Grace Hopper", Identity: "9876543210123", AccountNumber: "5555555555", Secret: "StaffPass789"},
		{Name: "Grace Again", Identity: "9876543210123", AccountNumber: "5555555555", Secret: "StaffPass789"},
		{Name: "Ada", Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456", Role: models.RoleClient},
		{Name: "Weak", Identity: "1111111111111", AccountNumber: "2222222222", Secret: "weak"},
	}

	var out bytes.Buffer
	res := provision(context.Background(), svc, entries, models.RoleStaff, &out)

	if res.Created != 2 || res.Skipped != 1 || res.Failed != 1 {
		t.Fatalf("unexpected summary %+v\n%s", res, out.String())
	}

	staff, err := repo.GetByCredentials(context.Background(), "9876543210123", "5555555555")
	if err != nil {
		t.Fatal(err)
	}
	if staff.Role != models.RoleStaff || staff.Name != "Grace Hopper" {
		t.Errorf("expected the first staff entry to win, got %+v", staff)
	}
	client, err := repo.GetByCredentials(context.Background(), "1234567890123", "1234567890")
	if err != nil {
		t.Fatal(err)
	}
	if client.Role != models.RoleClient {
		t.Errorf("expected per-entry role to override the default, got %s", client.Role)
	}
	if !strings.Contains(out.String(), "SKIPPED 5555555555") {
		t.Errorf("expected skip report, got %s", out.String())
	}
}

func TestProvisionRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService()
	entries := []accountEntry{{Name: "X", Identity: "1234567890123", AccountNumber: "1234567890", Secret: "MySecPass456"}}

	res := provision(context.Background(), svc, entries, models.Role("admin"), io.Discard)
	if res.Failed != 1 {
		t.Fatalf("expected failure for unknown role, got %+v", res)
	}
}

func TestDecodeEntries(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"two accounts", `[{"name":"A","identity":"1","accountNumber":"2","secret":"s"},{"name":"B"}]`, 2, false},
		{"empty list", `[]`, 0, true},
		{"unknown field", `[{"accountID":"1234567890"}]`, 0, true},
		{"not json", `name,identity`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := decodeEntries(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(entries) != tt.want {
				t.Fatalf("expected %d entries, got %d", tt.want, len(entries))
			}
		})
	}
}

func TestReadEntriesSingleAccount(t *testing.T) {
	if _, err := readEntries("", accountEntry{Name: "A"}); err == nil {
		t.Fatal("expected error without identity and account")
	}
	entries, err := readEntries("", accountEntry{Identity: "1234567890123", AccountNumber: "1234567890"})
	if err != nil || len(entries) != 1 {
		t.Fatalf("unexpected result %v %v", entries, err)
	}
}
