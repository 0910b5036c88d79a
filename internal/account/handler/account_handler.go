package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/eaglebank/swiftpay/internal/account/query"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/middleware"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/gin-gonic/gin"
)

// AccountCommander defines the write-side operations used by AccountHandler.
type AccountCommander interface {
	Register(context.Context, cqrs.RegisterAccountCommand) (*models.Account, error)
}

// AuthQuerier defines the login operation used by AccountHandler.
type AuthQuerier interface {
	Login(context.Context, cqrs.LoginCommand) (*query.LoginResult, error)
}

// AccountHandler serves registration and login.
type AccountHandler struct {
	commands AccountCommander
	queries  AuthQuerier
}

type RegisterRequest struct {
	Name          string `json:"name" validate:"notblank"`
	Identity      string `json:"identity" validate:"identity"`
	AccountNumber string `json:"accountNumber" validate:"accountnumber"`
	Secret        string `json:"secret" validate:"strongsecret"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type LoginRequest struct {
	Identity      string `json:"identity" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	Secret        string `json:"secret" validate:"required"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Role      models.Role `json:"role"`
}

func NewAccountHandler(commands AccountCommander, queries AuthQuerier) *AccountHandler {
	return &AccountHandler{commands: commands, queries: queries}
}

func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}

	account, err := h.commands.Register(c.Request.Context(), cqrs.RegisterAccountCommand{
		Name:          req.Name,
		Identity:      req.Identity,
		AccountNumber: req.AccountNumber,
		Secret:        req.Secret,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "Account registered successfully.",
		ID:      account.ID,
	})
}

func (h *AccountHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithAppError(c, apperr.Validation("", "Invalid request data."))
		return
	}
	if errs := middleware.ValidateRequest(req); len(errs) > 0 {
		middleware.RespondWithAppError(c, apperr.Validation(errs[0].Field, "All fields are required."))
		return
	}

	res, err := h.queries.Login(c.Request.Context(), cqrs.LoginCommand{
		Identity:      req.Identity,
		AccountNumber: req.AccountNumber,
		Secret:        req.Secret,
		ClientIP:      c.ClientIP(),
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Role:      res.Account.Role,
	})
}
