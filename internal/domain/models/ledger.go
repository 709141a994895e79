package models

import "time"

type TransactionType string

const (
	TxTopUp      TransactionType = "top-up"
	TxPurchase   TransactionType = "purchase"
	TxRefund     TransactionType = "refund"
	TxCommission TransactionType = "commission"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxTopUp, TxPurchase, TxRefund, TxCommission:
		return true
	}
	return false
}

// Debit reports whether amounts of type t are negative by convention.
func (t TransactionType) Debit() bool {
	return t == TxPurchase
}

type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
)

// LedgerTransaction is immutable once completed or failed. Corrections are new
// compensating transactions.
type LedgerTransaction struct {
	ID                    string            `json:"id"`
	AccountID             string            `json:"account_id"`
	Type                  TransactionType   `json:"type"`
	Amount                int64             `json:"amount"`
	Status                TransactionStatus `json:"status"`
	IdempotencyKey        string            `json:"idempotency_key"`
	LinkedReservationID   string            `json:"linked_reservation_id,omitempty"`
	ReversesTransactionID string            `json:"reverses_transaction_id,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}

// LedgerRequest is the payload of an append, online or queued offline.
type LedgerRequest struct {
	AccountID             string          `json:"account_id"`
	Type                  TransactionType `json:"type"`
	Amount                int64           `json:"amount"`
	IdempotencyKey        string          `json:"idempotency_key"`
	LinkedReservationID   string          `json:"linked_reservation_id,omitempty"`
	ReversesTransactionID string          `json:"reverses_transaction_id,omitempty"`
}

// SameEffect reports whether tx records what req asks for.
func (req LedgerRequest) SameEffect(tx LedgerTransaction) bool {
	return req.AccountID == tx.AccountID && req.Type == tx.Type && req.Amount == tx.Amount
}

// Balance folds the completed amounts of txs.
func Balance(txs []LedgerTransaction) int64 {
	var sum int64
	for _, tx := range txs {
		if tx.Status == TxCompleted {
			sum += tx.Amount
		}
	}
	return sum
}
