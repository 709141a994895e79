package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/utils"
)

type MemoryReservationStore struct {
	mu    sync.RWMutex
	rows  map[string]models.Reservation
	locks *utils.KeyedMutex
}

func NewMemoryReservationStore() *MemoryReservationStore {
	return &MemoryReservationStore{rows: map[string]models.Reservation{}, locks: utils.NewKeyedMutex()}
}

// Lock is shared by every service using this store instance.
func (s *MemoryReservationStore) Lock(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.locks.Lock(id), nil
}

func (s *MemoryReservationStore) Create(_ context.Context, r models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[r.ID]; ok {
		return domain.ConflictError{Resource: "reservation", Msg: "duplicate id " + r.ID}
	}
	s.rows[r.ID] = copyReservation(r)
	return nil
}

func (s *MemoryReservationStore) Get(_ context.Context, id string) (models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	if !ok {
		return models.Reservation{}, domain.NotFoundError{Resource: "reservation", ID: id}
	}
	return copyReservation(r), nil
}

func (s *MemoryReservationStore) Update(_ context.Context, r models.Reservation, from models.ReservationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rows[r.ID]
	if !ok {
		return domain.NotFoundError{Resource: "reservation", ID: r.ID}
	}
	if cur.State != from {
		return domain.ConflictError{Resource: "reservation", Msg: "state changed to " + string(cur.State)}
	}
	s.rows[r.ID] = copyReservation(r)
	return nil
}

func (s *MemoryReservationStore) ListPendingExpired(_ context.Context, now time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Reservation{}
	for _, r := range s.rows {
		if r.State == models.ReservationPending && models.HoldExpired(r.ExpiresAt, now) {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func copyReservation(r models.Reservation) models.Reservation {
	r.SeatIDs = append([]string(nil), r.SeatIDs...)
	return r
}
