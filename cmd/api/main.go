package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/swiftpay/internal/access"
	accountcmd "github.com/eaglebank/swiftpay/internal/account/command"
	accounthandler "github.com/eaglebank/swiftpay/internal/account/handler"
	accountqry "github.com/eaglebank/swiftpay/internal/account/query"
	accountrepo "github.com/eaglebank/swiftpay/internal/account/repository"
	"github.com/eaglebank/swiftpay/internal/audit"
	"github.com/eaglebank/swiftpay/internal/config"
	"github.com/eaglebank/swiftpay/internal/events"
	"github.com/eaglebank/swiftpay/internal/logging"
	"github.com/eaglebank/swiftpay/internal/middleware"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/ratelimit"
	redisx "github.com/eaglebank/swiftpay/internal/redis"
	"github.com/eaglebank/swiftpay/internal/server"
	"github.com/eaglebank/swiftpay/internal/storage"
	"github.com/eaglebank/swiftpay/internal/token"
	txcmd "github.com/eaglebank/swiftpay/internal/transaction/command"
	txhandler "github.com/eaglebank/swiftpay/internal/transaction/handler"
	txqry "github.com/eaglebank/swiftpay/internal/transaction/query"
	txrepo "github.com/eaglebank/swiftpay/internal/transaction/repository"
	"github.com/eaglebank/swiftpay/internal/utils"
	"github.com/gin-gonic/gin"
)

const (
	viewCacheTTL      = 10 * time.Minute
	eventStreamMaxLen = 100000
)

type accountStore interface {
	accountcmd.AccountWriter
	accountqry.AccountReader
	txcmd.AccountLookup
}

type stores struct {
	db       *sql.DB
	accounts accountStore
	txWriter txcmd.TransactionWriter
	txReader txqry.TransactionReader
	views    txcmd.ViewCacher
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redisx.Client
	if cfg.Redis.Addr != "" {
		var err error
		rdb, err = redisx.NewClient(ctx, redisx.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
	} else {
		logger.Warn("REDIS_ADDR not set: rate limits are per process and events are disabled")
	}

	st, err := openStores(ctx, logger, cfg, rdb)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	tokens, err := token.NewManager(token.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: "swiftpay",
	})
	if err != nil {
		return err
	}
	hasher := utils.NewBcryptHasher(cfg.Auth.BcryptCost)

	window := ratelimit.WindowConfig{Limit: cfg.RateLimit.LoginLimit, Window: cfg.RateLimit.LoginWindow}
	brute := ratelimit.BruteForceConfig{
		FreeRetries: cfg.RateLimit.BruteFreeRetries,
		MinWait:     cfg.RateLimit.BruteMinWait,
		MaxWait:     cfg.RateLimit.BruteMaxWait,
		Lifetime:    cfg.RateLimit.BruteLifetime,
	}

	var (
		loginLimiter  ratelimit.Limiter
		bruteForce    ratelimit.BruteForce
		accountEvents accountcmd.Publisher
		txEvents      txcmd.Publisher
		health        = server.StoreHealthService{DB: st.db}
	)
	if rdb != nil {
		loginLimiter = ratelimit.NewRedisLimiter(rdb.Client, window)
		bruteForce = ratelimit.NewRedisBruteForce(rdb.Client, brute)
		publisher := events.NewPublisher(rdb.Client).WithMaxLen(eventStreamMaxLen)
		accountEvents, txEvents = publisher, publisher
		health.Redis = rdb.Client
		startAudit(ctx, logger, rdb)
	} else {
		loginLimiter = ratelimit.NewMemoryLimiter(window)
		bruteForce = ratelimit.NewMemoryBruteForce(brute)
	}

	accountSvc := accountcmd.NewAccountCommandService(st.accounts, hasher, accountEvents, logger)
	authSvc, err := accountqry.NewAuthQueryService(st.accounts, hasher, tokens, bruteForce, logger)
	if err != nil {
		return err
	}
	txSvc := txcmd.NewTransactionCommandService(st.txWriter, st.accounts, st.views, txEvents, logger)
	txQuery := txqry.NewTransactionQueryService(st.txReader)

	router := server.NewRouter(logger, server.RouterDependencies{
		Accounts:       accounthandler.NewAccountHandler(accountSvc, authSvc),
		Transactions:   txhandler.NewTransactionHandler(txSvc, txQuery),
		Guard:          middleware.NewGuard(tokens, access.DefaultPolicy),
		LoginLimiter:   loginLimiter,
		Health:         health,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

func openStores(ctx context.Context, logger *slog.Logger, cfg config.Config, rdb *redisx.Client) (*stores, error) {
	if cfg.Store.Driver == config.DriverMemory {
		logger.Warn("using in-memory store: data is lost on restart")
		accounts := accountrepo.NewMemoryAccountRepository()
		ledger := txrepo.NewMemoryTransactionRepository(accounts)
		return &stores{accounts: accounts, txWriter: ledger, txReader: ledger, views: ledger}, nil
	}

	db, err := storage.OpenPostgres(ctx, cfg.Store.DatabaseURL, storage.DefaultPool)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	var cache *redisx.ViewCache[models.TransactionView]
	if rdb != nil {
		cache = redisx.NewViewCache[models.TransactionView](rdb.Client, "transaction:view:", viewCacheTTL, logger)
	}
	readRepo := txrepo.NewTransactionReadRepository(db, cache)

	return &stores{
		db:       db,
		accounts: accountrepo.NewAccountRepository(db),
		txWriter: txrepo.NewTransactionWriteRepository(db),
		txReader: readRepo,
		views:    readRepo,
	}, nil
}

func startAudit(ctx context.Context, logger *slog.Logger, rdb *redisx.Client) {
	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = "swiftpay"
	}
	for _, sub := range audit.NewRecorder(logger).Subscribers(rdb.Client, consumer) {
		go func(s *events.Subscriber) {
			if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit subscriber stopped", "error", err)
			}
		}(sub)
	}
}
