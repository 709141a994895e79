package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"
	"bustix/internal/utils"
)

// InventoryService owns the seat map of every trip. All seat transitions go
// through SeatStore.MutateTrip, so work on one trip is serialized while other
// trips proceed independently.
type InventoryService struct {
	Store     repositories.SeatStore
	Now       func() time.Time
	RequestID string
}

func (s InventoryService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// RegisterTrip seeds a trip's seat map with every seat available.
func (s InventoryService) RegisterTrip(ctx context.Context, trip models.Trip, seatIDs []string) (models.Trip, error) {
	trip.ID = strings.TrimSpace(trip.ID)
	if trip.ID == "" {
		return models.Trip{}, domain.ValidationError{Field: "id", Msg: "trip id is required"}
	}
	if trip.BasePrice <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "base_price", Msg: "must be positive"}
	}
	seats := utils.NormalizeSeatIDs(seatIDs)
	if len(seats) == 0 {
		return models.Trip{}, domain.ValidationError{Field: "seat_ids", Msg: "at least one seat is required"}
	}
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = s.now()
	}
	if err := s.Store.CreateTrip(ctx, trip, seats); err != nil {
		return models.Trip{}, err
	}
	utils.LogEvent(s.RequestID, "inventory", "register_trip", fmt.Sprintf("trip_id=%s seats=%d", trip.ID, len(seats)))
	return trip, nil
}

func (s InventoryService) Trip(ctx context.Context, tripID string) (models.Trip, error) {
	return s.Store.GetTrip(ctx, tripID)
}

// SeatMap returns the trip's seats as callers should see them: an expired
// hold reads as available even before it is reclaimed.
func (s InventoryService) SeatMap(ctx context.Context, tripID string) ([]models.SeatState, error) {
	seats, err := s.Store.ListSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range seats {
		seats[i] = seats[i].View(now)
	}
	return seats, nil
}

// Hold claims every requested seat for reservationID until now+ttl, or none
// of them. Seats whose hold already expired are reclaimed on the way.
func (s InventoryService) Hold(ctx context.Context, tripID string, seatIDs []string, reservationID string, ttl time.Duration) (time.Time, error) {
	seats := utils.NormalizeSeatIDs(seatIDs)
	if len(seats) == 0 {
		return time.Time{}, domain.ValidationError{Field: "seat_ids", Msg: "at least one seat is required"}
	}
	if reservationID == "" {
		return time.Time{}, domain.ValidationError{Field: "reservation_id", Msg: "required"}
	}
	if ttl <= 0 {
		return time.Time{}, domain.ValidationError{Field: "ttl", Msg: "must be positive"}
	}

	now := s.now()
	heldUntil := now.Add(ttl)
	err := s.Store.MutateTrip(ctx, tripID, func(m repositories.SeatMap) error {
		var unknown, taken []string
		for _, id := range seats {
			st, ok := m[id]
			switch {
			case !ok:
				unknown = append(unknown, id)
			case st.Status == models.SeatHeld && st.HolderID == reservationID:
			case !st.FreeAt(now):
				taken = append(taken, id)
			}
		}
		if len(unknown) > 0 {
			return domain.NotFoundError{Resource: "seat", ID: strings.Join(unknown, ",")}
		}
		if len(taken) > 0 {
			return domain.ConflictError{Resource: "seat", SeatIDs: taken}
		}
		for _, id := range seats {
			until := heldUntil
			m[id] = models.SeatState{SeatID: id, Status: models.SeatHeld, HolderID: reservationID, HeldUntil: &until}
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	utils.LogEvent(s.RequestID, "inventory", "hold", fmt.Sprintf("trip_id=%s reservation_id=%s seats=%s", tripID, reservationID, strings.Join(seats, ",")))
	return heldUntil, nil
}

// Confirm books every seat held by reservationID. When any of its holds has
// expired the remaining holds are released and ExpiredError is returned.
func (s InventoryService) Confirm(ctx context.Context, reservationID string) error {
	tripID, err := s.Store.TripOfHolder(ctx, reservationID)
	if err != nil {
		return err
	}
	now := s.now()
	expired := false
	err = s.Store.MutateTrip(ctx, tripID, func(m repositories.SeatMap) error {
		owned := m.OwnedBy(reservationID)
		if len(owned) == 0 {
			return domain.NotFoundError{Resource: "reservation seats", ID: reservationID}
		}
		for _, id := range owned {
			if m[id].Reclaimable(now) {
				expired = true
				break
			}
		}
		for _, id := range owned {
			st := m[id]
			if st.Status != models.SeatHeld {
				continue
			}
			if expired {
				m[id] = models.Available(id)
				continue
			}
			m[id] = models.SeatState{SeatID: id, Status: models.SeatBooked, HolderID: reservationID}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		utils.LogEvent(s.RequestID, "inventory", "confirm", "hold expired reservation_id="+reservationID)
		return domain.ExpiredError{Resource: "hold", ID: reservationID}
	}
	utils.LogEvent(s.RequestID, "inventory", "confirm", "booked reservation_id="+reservationID)
	return nil
}

// Release returns held seats of reservationID to available. Booked seats and
// unknown reservations are left alone.
func (s InventoryService) Release(ctx context.Context, reservationID string) error {
	_, err := s.free(ctx, reservationID, false)
	if domain.IsNotFound(err) {
		return nil
	}
	return err
}

// CancelBooking returns every seat of reservationID, booked or held, to
// available. It is paired with a compensating ledger entry by the caller.
func (s InventoryService) CancelBooking(ctx context.Context, reservationID string) error {
	n, err := s.free(ctx, reservationID, true)
	if err != nil {
		return err
	}
	utils.LogEvent(s.RequestID, "inventory", "cancel_booking", fmt.Sprintf("reservation_id=%s seats=%d", reservationID, n))
	return nil
}

func (s InventoryService) free(ctx context.Context, reservationID string, booked bool) (int, error) {
	tripID, err := s.Store.TripOfHolder(ctx, reservationID)
	if err != nil {
		return 0, err
	}
	n := 0
	err = s.Store.MutateTrip(ctx, tripID, func(m repositories.SeatMap) error {
		for _, id := range m.OwnedBy(reservationID) {
			st := m[id]
			if st.Status == models.SeatHeld || (booked && st.Status == models.SeatBooked) {
				m[id] = models.Available(id)
				n++
			}
		}
		return nil
	})
	return n, err
}

// Sweep reclaims expired holds on every trip that has any, returning the
// holder ids that lost seats.
func (s InventoryService) Sweep(ctx context.Context) ([]string, error) {
	trips, err := s.Store.TripsWithHolds(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	seen := map[string]struct{}{}
	for _, tripID := range trips {
		err := s.Store.MutateTrip(ctx, tripID, func(m repositories.SeatMap) error {
			for id, st := range m {
				if st.Reclaimable(now) {
					seen[st.HolderID] = struct{}{}
					m[id] = models.Available(id)
				}
			}
			return nil
		})
		if err != nil && !domain.IsNotFound(err) {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	if len(out) > 0 {
		utils.LogEvent(s.RequestID, "inventory", "sweep", fmt.Sprintf("reclaimed holders=%d", len(out)))
	}
	return out, nil
}
