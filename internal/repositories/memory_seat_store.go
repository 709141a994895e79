package repositories

import (
	"context"
	"sort"
	"sync"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// MemorySeatStore keeps seat maps in process, one mutex per trip.
type MemorySeatStore struct {
	mu      sync.RWMutex
	trips   map[string]*tripShard
	holders map[string]string
}

type tripShard struct {
	mu    sync.Mutex
	trip  models.Trip
	seats SeatMap
	order []string
}

func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{
		trips:   map[string]*tripShard{},
		holders: map[string]string{},
	}
}

func (s *MemorySeatStore) CreateTrip(_ context.Context, trip models.Trip, seatIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[trip.ID]; ok {
		return domain.ConflictError{Resource: "trip", Msg: "trip " + trip.ID + " already registered"}
	}
	shard := &tripShard{trip: trip, seats: make(SeatMap, len(seatIDs))}
	for _, id := range seatIDs {
		shard.seats[id] = models.Available(id)
		shard.order = append(shard.order, id)
	}
	s.trips[trip.ID] = shard
	return nil
}

func (s *MemorySeatStore) shard(tripID string) (*tripShard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.trips[tripID]
	if !ok {
		return nil, domain.NotFoundError{Resource: "trip", ID: tripID}
	}
	return sh, nil
}

func (s *MemorySeatStore) GetTrip(_ context.Context, tripID string) (models.Trip, error) {
	sh, err := s.shard(tripID)
	if err != nil {
		return models.Trip{}, err
	}
	return sh.trip, nil
}

func (s *MemorySeatStore) ListSeats(_ context.Context, tripID string) ([]models.SeatState, error) {
	sh, err := s.shard(tripID)
	if err != nil {
		return nil, err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	out := make([]models.SeatState, 0, len(sh.order))
	for _, id := range sh.order {
		out = append(out, sh.seats[id])
	}
	return out, nil
}

func (s *MemorySeatStore) TripOfHolder(_ context.Context, holderID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tripID, ok := s.holders[holderID]
	if !ok {
		return "", domain.NotFoundError{Resource: "reservation seats", ID: holderID}
	}
	return tripID, nil
}

func (s *MemorySeatStore) TripsWithHolds(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, tripID := range s.holders {
		if _, ok := seen[tripID]; ok {
			continue
		}
		seen[tripID] = struct{}{}
		out = append(out, tripID)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemorySeatStore) MutateTrip(_ context.Context, tripID string, fn func(seats SeatMap) error) error {
	sh, err := s.shard(tripID)
	if err != nil {
		return err
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	work := sh.seats.Clone()
	if err := fn(work); err != nil {
		return err
	}

	before := holderSet(sh.seats)
	after := holderSet(work)
	sh.seats = work

	s.mu.Lock()
	for h := range before {
		if _, still := after[h]; !still {
			delete(s.holders, h)
		}
	}
	for h := range after {
		s.holders[h] = tripID
	}
	s.mu.Unlock()
	return nil
}

func holderSet(m SeatMap) map[string]struct{} {
	out := map[string]struct{}{}
	for _, st := range m {
		if st.HolderID != "" {
			out[st.HolderID] = struct{}{}
		}
	}
	return out
}
