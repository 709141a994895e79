package models

import "time"

type SyncState string

const (
	SyncQueued  SyncState = "queued"
	SyncSyncing SyncState = "syncing"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// OfflineQueueEntry is a ledger request recorded on the device while it may
// be disconnected. Seq orders entries by creation.
type OfflineQueueEntry struct {
	Seq            uint64        `json:"seq"`
	IdempotencyKey string        `json:"idempotency_key"`
	Operation      LedgerRequest `json:"operation"`
	CreatedAt      time.Time     `json:"created_at"`
	State          SyncState     `json:"state"`
	Attempts       int           `json:"attempts"`
	LastError      string        `json:"last_error,omitempty"`
	LastAttemptAt  *time.Time    `json:"last_attempt_at,omitempty"`
}
