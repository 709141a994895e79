package offline

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"

	bolt "go.etcd.io/bbolt"
)

var (
	queueBucket = []byte("queue")
	metaBucket  = []byte("meta")
)

// openTimeout bounds the wait for another process holding the file.
const openTimeout = 5 * time.Second

// BoltStore persists the queue in a single bbolt file on the device. bbolt
// locks the file exclusively while open, so every operation opens, runs one
// transaction and closes again. A long-running watcher and a one-shot
// enqueue from another process can then share the file.
type BoltStore struct {
	path string
	mu   sync.Mutex
}

func OpenBoltStore(path string) (*BoltStore, error) {
	s := &BoltStore{path: path}
	err := s.update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(queueBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("init offline queue buckets: %w", err)
	}
	return s, nil
}

func (s *BoltStore) open() (*bolt.DB, error) {
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open offline queue %s: %w", s.path, err)
	}
	return db, nil
}

func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *BoltStore) view(fn func(tx *bolt.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

// seqKey zero-pads so byte order equals numeric order.
func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%020d", seq))
}

// NextSeq draws from the meta bucket's sequence, which survives restarts.
func (s *BoltStore) NextSeq() (uint64, error) {
	var seq uint64
	err := s.update(func(tx *bolt.Tx) error {
		var err error
		seq, err = tx.Bucket(metaBucket).NextSequence()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("next queue sequence: %w", err)
	}
	return seq, nil
}

func (s *BoltStore) Put(entry models.OfflineQueueEntry) error {
	if entry.Seq == 0 {
		return domain.ValidationError{Field: "seq", Msg: "entry has no sequence"}
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).Put(seqKey(entry.Seq), raw)
	})
}

func (s *BoltStore) List() ([]models.OfflineQueueEntry, error) {
	out := []models.OfflineQueueEntry{}
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).ForEach(func(k, v []byte) error {
			var e models.OfflineQueueEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode queue entry %s: %w", k, err)
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Delete(seq uint64) error {
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(queueBucket).Delete(seqKey(seq))
	})
}

// Close is a no-op; the file is only open during an operation.
func (s *BoltStore) Close() error { return nil }
