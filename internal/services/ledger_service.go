package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"
	"bustix/internal/utils"

	"github.com/google/uuid"
)

type LedgerService struct {
	Store     repositories.LedgerStore
	Now       func() time.Time
	NewID     func() string
	RequestID string
}

// AppendResult reports the stored transaction. Duplicate is set when the
// idempotency key had already been applied; that is still a success.
type AppendResult struct {
	Transaction models.LedgerTransaction `json:"transaction"`
	Duplicate   bool                     `json:"duplicate"`
}

func (s LedgerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s LedgerService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// Append records req exactly once per (account, idempotency key). Purchases
// are debits and are rejected when they would overdraw the account.
func (s LedgerService) Append(ctx context.Context, req models.LedgerRequest) (AppendResult, error) {
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := validateLedgerRequest(req); err != nil {
		return AppendResult{}, err
	}

	tx := models.LedgerTransaction{
		ID:                    s.newID(),
		AccountID:             req.AccountID,
		Type:                  req.Type,
		Amount:                req.Amount,
		Status:                models.TxCompleted,
		IdempotencyKey:        req.IdempotencyKey,
		LinkedReservationID:   req.LinkedReservationID,
		ReversesTransactionID: req.ReversesTransactionID,
		CreatedAt:             s.now(),
	}
	stored, dup, err := s.Store.Append(ctx, tx, req.Type.Debit())
	if err != nil {
		return AppendResult{}, err
	}
	if dup {
		if !req.SameEffect(stored) {
			utils.LogWarn(s.RequestID, "ledger", "append", fmt.Sprintf("key %s reused with different payload on account %s", req.IdempotencyKey, req.AccountID))
		}
		utils.LogEvent(s.RequestID, "ledger", "append", "duplicate ignored key="+req.IdempotencyKey)
		return AppendResult{Transaction: stored, Duplicate: true}, nil
	}
	utils.LogEvent(s.RequestID, "ledger", "append", fmt.Sprintf("account=%s type=%s amount=%d tx=%s", stored.AccountID, stored.Type, stored.Amount, stored.ID))
	return AppendResult{Transaction: stored}, nil
}

func validateLedgerRequest(req models.LedgerRequest) error {
	if req.AccountID == "" {
		return domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	if req.IdempotencyKey == "" {
		return domain.ValidationError{Field: "idempotency_key", Msg: "required"}
	}
	if !req.Type.Valid() {
		return domain.ValidationError{Field: "type", Msg: "unknown transaction type " + string(req.Type)}
	}
	return ValidateAmount(req.Type, req.Amount)
}

// ValidateAmount enforces the sign convention: purchases are negative,
// every other type is positive.
func ValidateAmount(t models.TransactionType, amount int64) error {
	switch {
	case amount == 0:
		return domain.ValidationError{Field: "amount", Msg: "must not be zero"}
	case t.Debit() && amount > 0:
		return domain.ValidationError{Field: "amount", Msg: "purchase must be negative"}
	case !t.Debit() && amount < 0:
		return domain.ValidationError{Field: "amount", Msg: string(t) + " must be positive"}
	}
	return nil
}

// BalanceOf is the fold of completed amounts; unknown accounts read as 0.
func (s LedgerService) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	return s.Store.Balance(ctx, accountID)
}

func (s LedgerService) History(ctx context.Context, accountID string) ([]models.LedgerTransaction, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	return s.Store.List(ctx, accountID)
}

// Statement returns balance and history read together, so the balance is
// always the fold of the returned history.
func (s LedgerService) Statement(ctx context.Context, accountID string) (int64, []models.LedgerTransaction, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return 0, nil, domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	return s.Store.Statement(ctx, accountID)
}

// Lookup returns the transaction applied under key, if any.
func (s LedgerService) Lookup(ctx context.Context, accountID, key string) (models.LedgerTransaction, bool, error) {
	return s.Store.Find(ctx, accountID, key)
}
