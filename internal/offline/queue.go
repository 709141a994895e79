package offline

import (
	"fmt"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/services"
	"bustix/internal/utils"
)

// Queue records ledger operations on the device. Enqueue touches only the
// local store and never waits on the network.
type Queue struct {
	store    Store
	deviceID string
	now      func() time.Time
}

func NewQueue(store Store, deviceID string) *Queue {
	return &Queue{store: store, deviceID: strings.TrimSpace(deviceID), now: utils.NowUTC}
}

// WithClock replaces the queue clock, mostly for tests.
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Enqueue assigns a fresh idempotency key and persists the entry as queued.
// The key is <deviceID>-<counter>-<unixnano>; the counter is durable and
// monotonic, so keys stay unique across restarts and clock changes.
func (q *Queue) Enqueue(op models.LedgerRequest) (models.OfflineQueueEntry, error) {
	if q.deviceID == "" {
		return models.OfflineQueueEntry{}, domain.ValidationError{Field: "device_id", Msg: "required"}
	}
	op.AccountID = strings.TrimSpace(op.AccountID)
	if op.AccountID == "" {
		return models.OfflineQueueEntry{}, domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	if !op.Type.Valid() {
		return models.OfflineQueueEntry{}, domain.ValidationError{Field: "type", Msg: "unknown transaction type " + string(op.Type)}
	}
	// A wrongly signed entry would be rejected on every sync and block the
	// entries behind it.
	if err := services.ValidateAmount(op.Type, op.Amount); err != nil {
		return models.OfflineQueueEntry{}, err
	}

	seq, err := q.store.NextSeq()
	if err != nil {
		return models.OfflineQueueEntry{}, err
	}
	now := q.now()
	op.IdempotencyKey = fmt.Sprintf("%s-%d-%d", q.deviceID, seq, now.UnixNano())
	entry := models.OfflineQueueEntry{
		Seq:            seq,
		IdempotencyKey: op.IdempotencyKey,
		Operation:      op,
		CreatedAt:      now,
		State:          models.SyncQueued,
	}
	if err := q.store.Put(entry); err != nil {
		return models.OfflineQueueEntry{}, err
	}
	utils.LogEvent("", "offline", "enqueue", fmt.Sprintf("key=%s account=%s type=%s", entry.IdempotencyKey, op.AccountID, op.Type))
	return entry, nil
}

// Entries lists everything not yet confirmed by the server, oldest first.
func (q *Queue) Entries() ([]models.OfflineQueueEntry, error) {
	return q.store.List()
}

func (q *Queue) Len() (int, error) {
	entries, err := q.store.List()
	return len(entries), err
}
