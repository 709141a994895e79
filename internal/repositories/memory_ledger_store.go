package repositories

import (
	"context"
	"sync"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// MemoryLedgerStore keeps one append-only slice per account. The running
// balance is updated in the same critical section as the append, so it always
// equals the fold over completed transactions.
type MemoryLedgerStore struct {
	mu       sync.RWMutex
	accounts map[string]*accountShard
}

type accountShard struct {
	mu      sync.Mutex
	txs     []models.LedgerTransaction
	byKey   map[string]int
	balance int64
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{accounts: map[string]*accountShard{}}
}

func (s *MemoryLedgerStore) account(id string, create bool) *accountShard {
	s.mu.RLock()
	sh, ok := s.accounts[id]
	s.mu.RUnlock()
	if ok || !create {
		return sh
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok = s.accounts[id]; ok {
		return sh
	}
	sh = &accountShard{byKey: map[string]int{}}
	s.accounts[id] = sh
	return sh
}

func (s *MemoryLedgerStore) Append(_ context.Context, tx models.LedgerTransaction, guard bool) (models.LedgerTransaction, bool, error) {
	sh := s.account(tx.AccountID, true)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if i, ok := sh.byKey[tx.IdempotencyKey]; ok {
		return sh.txs[i], true, nil
	}
	if guard && sh.balance+tx.Amount < 0 {
		return models.LedgerTransaction{}, false, domain.InsufficientFundsError{
			AccountID: tx.AccountID,
			Balance:   sh.balance,
			Required:  -tx.Amount,
		}
	}
	sh.txs = append(sh.txs, tx)
	sh.byKey[tx.IdempotencyKey] = len(sh.txs) - 1
	if tx.Status == models.TxCompleted {
		sh.balance += tx.Amount
	}
	return tx, false, nil
}

func (s *MemoryLedgerStore) Find(_ context.Context, accountID, key string) (models.LedgerTransaction, bool, error) {
	sh := s.account(accountID, false)
	if sh == nil {
		return models.LedgerTransaction{}, false, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	i, ok := sh.byKey[key]
	if !ok {
		return models.LedgerTransaction{}, false, nil
	}
	return sh.txs[i], true, nil
}

func (s *MemoryLedgerStore) Balance(_ context.Context, accountID string) (int64, error) {
	sh := s.account(accountID, false)
	if sh == nil {
		return 0, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.balance, nil
}

func (s *MemoryLedgerStore) List(_ context.Context, accountID string) ([]models.LedgerTransaction, error) {
	sh := s.account(accountID, false)
	if sh == nil {
		return []models.LedgerTransaction{}, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return append([]models.LedgerTransaction(nil), sh.txs...), nil
}

// Statement reads balance and history in one critical section.
func (s *MemoryLedgerStore) Statement(_ context.Context, accountID string) (int64, []models.LedgerTransaction, error) {
	sh := s.account(accountID, false)
	if sh == nil {
		return 0, []models.LedgerTransaction{}, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.balance, append([]models.LedgerTransaction(nil), sh.txs...), nil
}
