package handlers

import (
	"context"
	"net/http"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/http/middleware"
	"bustix/internal/services"

	"github.com/gin-gonic/gin"
)

type ledgerRequest struct {
	AccountID           string `json:"account_id"`
	Type                string `json:"type"`
	Amount              int64  `json:"amount"`
	IdempotencyKey      string `json:"idempotency_key"`
	LinkedReservationID string `json:"linked_reservation_id"`
}

// ledgerSubmitFunc applies a ledger request on behalf of one role.
type ledgerSubmitFunc func(a *API, c *gin.Context, caller domain.RequestContext, req models.LedgerRequest) (services.DepositResult, error)

var ledgerSubmitters = map[domain.Role]ledgerSubmitFunc{
	domain.RoleCustomer: submitAsCustomer,
	domain.RoleAgent:    submitAsAgent,
	domain.RoleAdmin:    submitAsAdmin,
}

// Customers may only top up their own wallet. Purchases and refunds come
// from the reservation flow.
func submitAsCustomer(a *API, c *gin.Context, caller domain.RequestContext, req models.LedgerRequest) (services.DepositResult, error) {
	if req.AccountID != caller.AccountID {
		return services.DepositResult{}, domain.ForbiddenError{Msg: "customer hanya boleh mengisi saldo sendiri"}
	}
	if req.Type != models.TxTopUp {
		return services.DepositResult{}, domain.ForbiddenError{Msg: "customer hanya boleh top-up"}
	}
	return appendOnly(c.Request.Context(), a.ledger(c), req)
}

// Agents take cash deposits; a top-up for another account earns commission.
func submitAsAgent(a *API, c *gin.Context, caller domain.RequestContext, req models.LedgerRequest) (services.DepositResult, error) {
	if req.Type != models.TxTopUp {
		return services.DepositResult{}, domain.ForbiddenError{Msg: "agen hanya boleh mencatat top-up"}
	}
	if req.AccountID == caller.AccountID {
		return appendOnly(c.Request.Context(), a.ledger(c), req)
	}
	return a.deposits(c).RecordDeposit(c.Request.Context(), caller.AccountID, req)
}

// Admins may record any type for any account, e.g. manual corrections.
func submitAsAdmin(a *API, c *gin.Context, _ domain.RequestContext, req models.LedgerRequest) (services.DepositResult, error) {
	return appendOnly(c.Request.Context(), a.ledger(c), req)
}

func appendOnly(ctx context.Context, svc services.LedgerService, req models.LedgerRequest) (services.DepositResult, error) {
	out, err := svc.Append(ctx, req)
	if err != nil {
		return services.DepositResult{}, err
	}
	return services.DepositResult{TopUp: out}, nil
}

// SubmitLedgerTransaction appends one transaction. The key comes from the
// body or the Idempotency-Key header; resubmitting it returns the original.
func (a *API) SubmitLedgerTransaction(c *gin.Context) {
	var body ledgerRequest
	if !BindJSONOrError(c, &body) {
		return
	}
	caller := middleware.Caller(c)
	submit, ok := ledgerSubmitters[caller.Role]
	if !ok {
		RespondDomainError(c, domain.ForbiddenError{Msg: "role tidak diizinkan"})
		return
	}

	req := models.LedgerRequest{
		AccountID:           strings.TrimSpace(body.AccountID),
		Type:                models.TransactionType(strings.ToLower(strings.TrimSpace(body.Type))),
		Amount:              body.Amount,
		IdempotencyKey:      strings.TrimSpace(body.IdempotencyKey),
		LinkedReservationID: strings.TrimSpace(body.LinkedReservationID),
	}
	if req.AccountID == "" {
		req.AccountID = caller.AccountID
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	out, err := submit(a, c, caller, req)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	status := http.StatusCreated
	if out.TopUp.Duplicate {
		status = http.StatusOK
	}
	resp := gin.H{
		"transaction": out.TopUp.Transaction,
		"duplicate":   out.TopUp.Duplicate,
	}
	if out.Commission != nil {
		resp["commission"] = out.Commission.Transaction
	}
	c.JSON(status, resp)
}

func (a *API) accountFor(c *gin.Context) (string, bool) {
	accountID := strings.TrimSpace(c.Param("id"))
	if !middleware.Caller(c).CanActFor(accountID) {
		RespondDomainError(c, domain.ForbiddenError{Msg: "akses ke akun lain tidak diizinkan"})
		return "", false
	}
	return accountID, true
}

func (a *API) GetAccountBalance(c *gin.Context) {
	accountID, ok := a.accountFor(c)
	if !ok {
		return
	}
	balance, err := a.ledger(c).BalanceOf(c.Request.Context(), accountID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "balance": balance})
}

func (a *API) GetAccountTransactions(c *gin.Context) {
	accountID, ok := a.accountFor(c)
	if !ok {
		return
	}
	balance, txs, err := a.ledger(c).Statement(c.Request.Context(), accountID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":   accountID,
		"balance":      balance,
		"transactions": txs,
	})
}
