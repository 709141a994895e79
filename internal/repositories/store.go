package repositories

import (
	"context"
	"time"

	"bustix/internal/domain/models"
)

// SeatMap is the locked view of one trip's seats handed to MutateTrip.
type SeatMap map[string]models.SeatState

// Clone returns an independent copy of m.
func (m SeatMap) Clone() SeatMap {
	out := make(SeatMap, len(m))
	for k, v := range m {
		if v.HeldUntil != nil {
			t := *v.HeldUntil
			v.HeldUntil = &t
		}
		out[k] = v
	}
	return out
}

// OwnedBy returns the seat ids whose holder is holderID.
func (m SeatMap) OwnedBy(holderID string) []string {
	out := []string{}
	for id, st := range m {
		if st.HolderID == holderID {
			out = append(out, id)
		}
	}
	return out
}

// SeatStore holds the authoritative seat map per trip. MutateTrip gives fn
// exclusive access to one trip; changes persist only when fn returns nil.
type SeatStore interface {
	CreateTrip(ctx context.Context, trip models.Trip, seatIDs []string) error
	GetTrip(ctx context.Context, tripID string) (models.Trip, error)
	ListSeats(ctx context.Context, tripID string) ([]models.SeatState, error)
	TripOfHolder(ctx context.Context, holderID string) (string, error)
	TripsWithHolds(ctx context.Context) ([]string, error)
	MutateTrip(ctx context.Context, tripID string, fn func(seats SeatMap) error) error
}

// ReservationStore persists reservations. Update applies only when the stored
// state still equals from. Lock serializes work on one reservation across
// every process sharing the store; the returned func releases it.
type ReservationStore interface {
	Lock(ctx context.Context, id string) (unlock func(), err error)
	Create(ctx context.Context, r models.Reservation) error
	Get(ctx context.Context, id string) (models.Reservation, error)
	Update(ctx context.Context, r models.Reservation, from models.ReservationState) error
	ListPendingExpired(ctx context.Context, now time.Time) ([]models.Reservation, error)
}

// LedgerStore appends transactions with per-account serialization. A repeated
// (account, idempotency key) returns the stored transaction and duplicate=true.
// With guard set the append fails with InsufficientFundsError when the
// resulting balance would be negative.
type LedgerStore interface {
	Append(ctx context.Context, tx models.LedgerTransaction, guard bool) (stored models.LedgerTransaction, duplicate bool, err error)
	Find(ctx context.Context, accountID, idempotencyKey string) (models.LedgerTransaction, bool, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	List(ctx context.Context, accountID string) ([]models.LedgerTransaction, error)
	Statement(ctx context.Context, accountID string) (balance int64, txs []models.LedgerTransaction, err error)
}
