package services

import (
	"context"
	"fmt"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/utils"
)

// DepositService records cash deposits taken by field agents. The customer
// top-up and the agent commission are separate idempotent appends, so a
// retried submission completes whichever half is missing.
type DepositService struct {
	Ledger        LedgerService
	CommissionBPS int64
	RequestID     string
}

type DepositResult struct {
	TopUp      AppendResult  `json:"top_up"`
	Commission *AppendResult `json:"commission,omitempty"`
}

// CommissionKey derives the commission idempotency key from the deposit key.
func CommissionKey(depositKey string) string {
	return depositKey + ":commission"
}

func (s DepositService) RecordDeposit(ctx context.Context, agentID string, req models.LedgerRequest) (DepositResult, error) {
	if req.Type != models.TxTopUp {
		return DepositResult{}, domain.ValidationError{Field: "type", Msg: "agent deposits must be top-up"}
	}
	topUp, err := s.Ledger.Append(ctx, req)
	if err != nil {
		return DepositResult{}, err
	}
	out := DepositResult{TopUp: topUp}

	fee := utils.Commission(req.Amount, s.CommissionBPS)
	if fee <= 0 || agentID == "" || agentID == req.AccountID {
		return out, nil
	}
	commission, err := s.Ledger.Append(ctx, models.LedgerRequest{
		AccountID:      agentID,
		Type:           models.TxCommission,
		Amount:         fee,
		IdempotencyKey: CommissionKey(req.IdempotencyKey),
	})
	if err != nil {
		return out, fmt.Errorf("commission for deposit %s: %w", req.IdempotencyKey, err)
	}
	out.Commission = &commission
	utils.LogEvent(s.RequestID, "deposit", "record", fmt.Sprintf("agent=%s account=%s amount=%d commission=%d", agentID, req.AccountID, req.Amount, fee))
	return out, nil
}
