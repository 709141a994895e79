package offline

import (
	"sort"
	"sync"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// Store is the device-local durable queue. List returns entries in Seq order.
type Store interface {
	NextSeq() (uint64, error)
	Put(entry models.OfflineQueueEntry) error
	List() ([]models.OfflineQueueEntry, error)
	Delete(seq uint64) error
	Close() error
}

// MemoryStore keeps the queue in process. It does not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	seq     uint64
	entries map[uint64]models.OfflineQueueEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[uint64]models.OfflineQueueEntry{}}
}

func (s *MemoryStore) NextSeq() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Put(entry models.OfflineQueueEntry) error {
	if entry.Seq == 0 {
		return domain.ValidationError{Field: "seq", Msg: "entry has no sequence"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Seq] = entry
	return nil
}

func (s *MemoryStore) List() ([]models.OfflineQueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OfflineQueueEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) Delete(seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, seq)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
