// Command provision creates accounts with an explicit role, typically staff,
// outside the public registration flow. Existing accounts are skipped.
//
//	provision -name "Grace Hopper" -identity 9876543210123 -account 5555555555 -role staff
//	provision -file accounts.json
//
// The secret for a single account is read from -secret or PROVISION_SECRET.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	accountcmd "github.com/eaglebank/swiftpay/internal/account/command"
	accountrepo "github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/config"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/eaglebank/swiftpay/internal/logging"
	"github.com/eaglebank/swiftpay/internal/models"
	redisx "github.com/eaglebank/swiftpay/internal/redis"
	"github.com/eaglebank/swiftpay/internal/storage"
	"github.com/eaglebank/swiftpay/internal/utils"
)

type accountEntry struct {
	Name          string      `json:"name"`
	Identity      string      `json:"identity"`
	AccountNumber string      `json:"accountNumber"`
	Secret        string      `json:"secret"`
	Role          models.Role `json:"role"`
}

type provisioner interface {
	Provision(ctx context.Context, cmd cqrs.ProvisionAccountCommand) (*models.Account, bool, error)
}

type summary struct {
	Created int
	Skipped int
	Failed  int
}

func main() {
	var (
		file     = flag.String("file", "", "JSON file with an array of accounts")
		name     = flag.String("name", "", "account holder name")
		identity = flag.String("identity", "", "13 digit identity number")
		account  = flag.String("account", "", "10 digit account number")
		secret   = flag.String("secret", os.Getenv("PROVISION_SECRET"), "account secret")
		role     = flag.String("role", string(models.RoleStaff), "role for accounts that do not set one")
	)
	flag.Parse()

	cfg, err := config.LoadOffline()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)

	entries, err := readEntries(*file, accountEntry{
		Name:          *name,
		Identity:      *identity,
		AccountNumber: *account,
		Secret:        *secret,
	})
	if err != nil {
		logger.Error("failed to read accounts", "error", err)
		os.Exit(2)
	}

	svc, closeFn, err := newService(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	res := provision(context.Background(), svc, entries, models.Role(*role), os.Stdout)
	fmt.Printf("created %d, skipped %d, failed %d\n", res.Created, res.Skipped, res.Failed)
	if res.Failed > 0 {
		closeFn()
		os.Exit(1)
	}
}

// readEntries loads the accounts from path, or falls back to the single
// account given on the command line.
func readEntries(path string, single accountEntry) ([]accountEntry, error) {
	if path == "" {
		if single.Identity == "" || single.AccountNumber == "" {
			return nil, errors.New("either -file or -identity and -account are required")
		}
		return []accountEntry{single}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeEntries(f)
}

func decodeEntries(r io.Reader) ([]accountEntry, error) {
	var entries []accountEntry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("invalid accounts file: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("accounts file is empty")
	}
	return entries, nil
}

// provision processes every entry and keeps going after a failure.
func provision(ctx context.Context, svc provisioner, entries []accountEntry, defaultRole models.Role, out io.Writer) summary {
	var res summary
	for _, e := range entries {
		role := e.Role
		if role == "" {
			role = defaultRole
		}
		account, created, err := svc.Provision(ctx, cqrs.ProvisionAccountCommand{
			Name:          e.Name,
			Identity:      e.Identity,
			AccountNumber: e.AccountNumber,
			Secret:        e.Secret,
			Role:          role,
		})
		switch {
		case err != nil:
			res.Failed++
			fmt.Fprintf(out, "FAILED  %s: %v\n", e.AccountNumber, err)
		case !created:
			res.Skipped++
			fmt.Fprintf(out, "SKIPPED %s: account already exists\n", e.AccountNumber)
		default:
			res.Created++
			fmt.Fprintf(out, "CREATED %s: %s (%s)\n", e.AccountNumber, account.ID, account.Role)
		}
	}
	return res
}

func newService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*accountcmd.AccountCommandService, func(), error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return nil, nil, fmt.Errorf("provisioning requires the %s store, got %q", config.DriverPostgres, cfg.Store.Driver)
	}

	db, err := storage.OpenPostgres(ctx, cfg.Store.DatabaseURL, storage.DefaultPool)
	if err != nil {
		return nil, nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	closers := []func() error{db.Close}
	var publisher accountcmd.Publisher
	if cfg.Redis.Addr != "" {
		rdb, err := redisx.NewClient(ctx, redisx.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			logger.Warn("redis unavailable, account events will not be published", "error", err)
		} else {
			publisher = events.NewPublisher(rdb.Client)
			closers = append(closers, rdb.Close)
		}
	}

	closed := false
	closeFn := func() {
		if closed {
			return
		}
		closed = true
		for _, c := range closers {
			_ = c()
		}
	}

	hasher := utils.NewBcryptHasher(cfg.Auth.BcryptCost)
	return accountcmd.NewAccountCommandService(accountrepo.NewAccountRepository(db), hasher, publisher, logger), closeFn, nil
}
