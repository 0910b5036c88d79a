package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/eaglebank/swiftpay/internal/access"
	accounthandler "github.com/eaglebank/swiftpay/internal/account/handler"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/middleware"
	"github.com/eaglebank/swiftpay/internal/ratelimit"
	txhandler "github.com/eaglebank/swiftpay/internal/transaction/handler"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterDependencies collects handler dependencies.
type RouterDependencies struct {
	Accounts     *accounthandler.AccountHandler
	Transactions *txhandler.TransactionHandler
	Guard        *middleware.Guard
	// LoginLimiter caps login requests per client IP. Nil disables it.
	LoginLimiter   ratelimit.Limiter
	Health         HealthService
	AllowedOrigins []string
	// TrustedProxies lists the peers whose X-Forwarded-For is honored.
	// Nil means the client IP is always the connection's remote address.
	TrustedProxies []string
	RequestTimeout time.Duration
}

// NewRouter wires the HTTP routes exposed by the API.
func NewRouter(logger *slog.Logger, deps RouterDependencies) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, ignoring forwarded headers", "error", err)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.SecurityHeaders())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  deps.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders: []string{"X-Request-ID", "Retry-After", "RateLimit-Limit", "RateLimit-Remaining"},
			MaxAge:        12 * time.Hour,
		}))
	}
	router.Use(middleware.Timeout(deps.RequestTimeout))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if deps.Health != nil {
			if err := deps.Health.Probe(ctx); err != nil {
				logger.Error("health probe failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := router.Group("/api/users")
	{
		users.POST("/register", deps.Accounts.Register)

		login := []gin.HandlerFunc{}
		if deps.LoginLimiter != nil {
			login = append(login, middleware.RateLimit(deps.LoginLimiter))
		}
		login = append(login, deps.Accounts.Login)
		users.POST("/login", login...)
	}

	payments := router.Group("/api/payments", deps.Guard.Authenticate())
	{
		payments.POST("", deps.Guard.Require(access.SubmitTransaction), deps.Transactions.SubmitTransaction)
		payments.GET("", deps.Guard.Require(access.ListTransactions), deps.Transactions.ListTransactions)
		payments.GET("/:id", deps.Guard.Require(access.GetTransaction), deps.Transactions.GetTransaction)
		payments.PUT("/:id/verify", deps.Guard.Require(access.ApproveTransaction), deps.Transactions.ApproveTransaction)
	}

	router.NoRoute(func(c *gin.Context) {
		middleware.RespondWithAppError(c, apperr.NotFound("Route not found."))
	})

	return router
}
