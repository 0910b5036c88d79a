package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    string `json:"status"`
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindMissingToken,
		apperr.KindTokenExpired, apperr.KindTokenInvalid:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError writes err as an ErrorResponse, aborts the chain and
// logs it. Internal causes are logged, never returned.
func RespondWithAppError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	status := StatusFor(appErr.Kind)
	now := time.Now().UTC()

	attrs := []any{
		"errorCode", appErr.Kind.Code(),
		"status", status,
		"path", c.FullPath(),
	}
	if id, ok := GetUserID(c); ok {
		attrs = append(attrs, "accountId", id)
	}
	if appErr.Field != "" {
		attrs = append(attrs, "field", appErr.Field)
	}
	logger := LoggerFrom(c)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", append(attrs, "error", err)...)
	case appErr.Err != nil:
		logger.Warn("request rejected", append(attrs, "cause", appErr.Err.Error())...)
	default:
		logger.Info("request rejected", attrs...)
	}

	if appErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(appErr.RetryAfter.Seconds()))))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Status:    "error",
		ErrorCode: appErr.Kind.Code(),
		Message:   appErr.Message,
		Field:     appErr.Field,
		Timestamp: now.Format(time.RFC3339),
	})
}

// LoggerFrom returns the request-scoped logger set by LoggingMiddleware, or
// the default logger.
func LoggerFrom(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
