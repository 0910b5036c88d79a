package handler

import (
	"context"
	"net/http"

	"github.com/eaglebank/swiftpay/internal/cqrs"
	"github.com/eaglebank/swiftpay/internal/middleware"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	Submit(context.Context, cqrs.SubmitTransactionCommand) (*models.Transaction, error)
	Approve(context.Context, cqrs.ApproveTransactionCommand) (*models.Transaction, error)
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

// SubmitTransactionRequest fields are declared in the order they are checked.
type SubmitTransactionRequest struct {
	Amount       decimal.Decimal `json:"amount" validate:"amount"`
	Currency     string          `json:"currency" validate:"currency"`
	Provider     string          `json:"provider" validate:"eq=SWIFT"`
	RoutingCode  string          `json:"routingCode" validate:"bic"`
	PayeeAccount string          `json:"payeeAccount" validate:"payee"`
}

type ListTransactionsRequest struct {
	Status string `form:"status" json:"status" validate:"omitempty,txstatus"`
}

type TransactionResponse struct {
	Message     string              `json:"message"`
	Transaction *models.Transaction `json:"transaction"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

func (h *TransactionHandler) SubmitTransaction(c *gin.Context) {
	var req SubmitTransactionRequest
	if !middleware.BindAndValidate(c, &req) {
		return
	}
	clientID, _ := middleware.GetUserID(c)

	t, err := h.commands.Submit(c.Request.Context(), cqrs.SubmitTransactionCommand{
		ClientID:     clientID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Provider:     req.Provider,
		PayeeAccount: req.PayeeAccount,
		RoutingCode:  req.RoutingCode,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, TransactionResponse{
		Message:     "Transaction created successfully.",
		Transaction: t,
	})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	req := ListTransactionsRequest{Status: c.Query("status")}
	if errs := middleware.ValidateRequest(req); len(errs) > 0 {
		middleware.RespondWithValidationError(c, errs)
		return
	}
	staffID, _ := middleware.GetUserID(c)

	views, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{
		Status:           models.TransactionStatus(req.Status),
		RequestingUserID: staffID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	middleware.LoggerFrom(c).Info("transactions retrieved", "accountId", staffID, "count", len(views))
	c.JSON(http.StatusOK, views)
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	staffID, _ := middleware.GetUserID(c)

	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID:    c.Param("id"),
		RequestingUserID: staffID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *TransactionHandler) ApproveTransaction(c *gin.Context) {
	staffID, _ := middleware.GetUserID(c)

	t, err := h.commands.Approve(c.Request.Context(), cqrs.ApproveTransactionCommand{
		TransactionID: c.Param("id"),
		StaffID:       staffID,
	})
	if err != nil {
		middleware.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, TransactionResponse{
		Message:     "Transaction approved successfully.",
		Transaction: t,
	})
}
