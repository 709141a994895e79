package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/utils"
)

// Submitter applies one queued operation to the server ledger under the
// operation's idempotency key.
type Submitter interface {
	Submit(ctx context.Context, op models.LedgerRequest) (models.LedgerTransaction, error)
}

// Connectivity is the device's online/offline signal.
type Connectivity interface {
	Online() bool
	Changes() <-chan bool
}

// Syncer replays the queue. Only one pass runs at a time; a trigger that
// arrives during a pass is coalesced into it.
type Syncer struct {
	Queue        *Queue
	Submitter    Submitter
	Connectivity Connectivity
	Now          func() time.Time

	running sync.Mutex
}

type EntryResult struct {
	IdempotencyKey string           `json:"idempotency_key"`
	AccountID      string           `json:"account_id"`
	State          models.SyncState `json:"state"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	Skipped        bool             `json:"skipped,omitempty"`
	Error          string           `json:"error,omitempty"`
}

type SyncReport struct {
	Coalesced bool          `json:"coalesced"`
	Attempted int           `json:"attempted"`
	Synced    int           `json:"synced"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Results   []EntryResult `json:"results"`
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// Sync submits every queued, failed or interrupted entry in creation order.
// After a failure, later entries of the same account wait for the next pass.
// A network failure ends the pass and is returned with the partial report.
func (s *Syncer) Sync(ctx context.Context) (SyncReport, error) {
	if !s.running.TryLock() {
		return SyncReport{Coalesced: true}, nil
	}
	defer s.running.Unlock()

	if s.Connectivity != nil && !s.Connectivity.Online() {
		return SyncReport{}, domain.NetworkUnavailableError{}
	}

	entries, err := s.Queue.store.List()
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Results: []EntryResult{}}
	blocked := map[string]bool{}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		account := e.Operation.AccountID
		if e.State == models.SyncSynced {
			// confirmed earlier, delete did not complete
			if err := s.Queue.store.Delete(e.Seq); err != nil {
				return report, err
			}
			continue
		}
		if blocked[account] {
			report.Skipped++
			report.Results = append(report.Results, EntryResult{IdempotencyKey: e.IdempotencyKey, AccountID: account, State: e.State, Skipped: true})
			continue
		}

		at := s.now()
		e.State = models.SyncSyncing
		e.Attempts++
		e.LastAttemptAt = &at
		if err := s.Queue.store.Put(e); err != nil {
			return report, err
		}
		report.Attempted++

		op := e.Operation
		op.IdempotencyKey = e.IdempotencyKey
		tx, subErr := s.Submitter.Submit(ctx, op)
		if subErr != nil {
			e.State = models.SyncFailed
			e.LastError = subErr.Error()
			if err := s.Queue.store.Put(e); err != nil {
				return report, err
			}
			blocked[account] = true
			report.Failed++
			report.Results = append(report.Results, EntryResult{IdempotencyKey: e.IdempotencyKey, AccountID: account, State: e.State, Error: e.LastError})
			utils.LogWarn("", "offline", "sync", fmt.Sprintf("key=%s attempt=%d failed: %v", e.IdempotencyKey, e.Attempts, subErr))
			if domain.IsNetworkUnavailable(subErr) {
				return report, subErr
			}
			continue
		}

		e.State = models.SyncSynced
		e.LastError = ""
		if err := s.Queue.store.Put(e); err != nil {
			return report, err
		}
		if err := s.Queue.store.Delete(e.Seq); err != nil {
			return report, err
		}
		report.Synced++
		report.Results = append(report.Results, EntryResult{IdempotencyKey: e.IdempotencyKey, AccountID: account, State: models.SyncSynced, TransactionID: tx.ID})
	}

	utils.LogEvent("", "offline", "sync", fmt.Sprintf("attempted=%d synced=%d failed=%d skipped=%d", report.Attempted, report.Synced, report.Failed, report.Skipped))
	return report, nil
}

// Run syncs whenever connectivity comes back or a manual retry arrives,
// until ctx is done.
func (s *Syncer) Run(ctx context.Context, manual <-chan struct{}) {
	var changes <-chan bool
	if s.Connectivity != nil {
		changes = s.Connectivity.Changes()
		if s.Connectivity.Online() {
			s.trigger(ctx, "startup")
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if online {
				s.trigger(ctx, "connectivity")
			}
		case _, ok := <-manual:
			if !ok {
				manual = nil
				continue
			}
			s.trigger(ctx, "manual")
		}
	}
}

func (s *Syncer) trigger(ctx context.Context, reason string) {
	report, err := s.Sync(ctx)
	switch {
	case report.Coalesced:
		utils.LogEvent("", "offline", "sync", reason+" trigger coalesced")
	case err != nil:
		utils.LogWarn("", "offline", "sync", reason+" pass ended: "+err.Error())
	}
}
