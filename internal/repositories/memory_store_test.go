package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

func seedTrip(t *testing.T, s *MemorySeatStore, tripID string, seats ...string) {
	t.Helper()
	trip := models.Trip{ID: tripID, RouteFrom: "Medan", RouteTo: "Siantar", BasePrice: 100}
	if err := s.CreateTrip(context.Background(), trip, seats); err != nil {
		t.Fatalf("create trip: %v", err)
	}
}

func TestMemorySeatStoreCreateTripTwiceConflicts(t *testing.T) {
	s := NewMemorySeatStore()
	seedTrip(t, s, "T1", "1A")
	err := s.CreateTrip(context.Background(), models.Trip{ID: "T1"}, []string{"1A"})
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.GetTrip(context.Background(), "T9"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemorySeatStoreMutateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeatStore()
	seedTrip(t, s, "T1", "1A", "1B")

	err := s.MutateTrip(ctx, "T1", func(seats SeatMap) error {
		seats["1A"] = models.SeatState{SeatID: "1A", Status: models.SeatBooked, HolderID: "R1"}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatalf("expected fn error")
	}
	seats, _ := s.ListSeats(ctx, "T1")
	if seats[0].Status != models.SeatAvailable {
		t.Fatalf("seat changed after failed mutation: %+v", seats[0])
	}
	if _, err := s.TripOfHolder(ctx, "R1"); !domain.IsNotFound(err) {
		t.Fatalf("holder index leaked: %v", err)
	}
}

func TestMemorySeatStoreHolderIndex(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeatStore()
	seedTrip(t, s, "T1", "1A", "1B")
	seedTrip(t, s, "T2", "1A")

	until := time.Now().Add(time.Minute)
	hold := func(seats SeatMap) error {
		seats["1A"] = models.SeatState{SeatID: "1A", Status: models.SeatHeld, HolderID: "R2", HeldUntil: &until}
		return nil
	}
	if err := s.MutateTrip(ctx, "T2", hold); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	tripID, err := s.TripOfHolder(ctx, "R2")
	if err != nil || tripID != "T2" {
		t.Fatalf("expected T2, got %q %v", tripID, err)
	}
	trips, _ := s.TripsWithHolds(ctx)
	if len(trips) != 1 || trips[0] != "T2" {
		t.Fatalf("unexpected trips with holds: %v", trips)
	}

	if err := s.MutateTrip(ctx, "T2", func(seats SeatMap) error {
		seats["1A"] = models.Available("1A")
		return nil
	}); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := s.TripOfHolder(ctx, "R2"); !domain.IsNotFound(err) {
		t.Fatalf("expected holder removed, got %v", err)
	}
}

func TestMemorySeatStoreSingleWinnerPerSeat(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySeatStore()
	seedTrip(t, s, "T1", "1A")

	const workers = 64
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			holder := fmt.Sprintf("R%d", i)
			err := s.MutateTrip(ctx, "T1", func(seats SeatMap) error {
				if seats["1A"].Status != models.SeatAvailable {
					return domain.ConflictError{Resource: "seat", SeatIDs: []string{"1A"}}
				}
				seats["1A"] = models.SeatState{SeatID: "1A", Status: models.SeatBooked, HolderID: holder}
				return nil
			})
			if err == nil {
				mu.Lock()
				wins = append(wins, holder)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if len(wins) != 1 {
		t.Fatalf("expected exactly one winner, got %v", wins)
	}
}

func TestMemoryReservationStoreUpdateIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryReservationStore()
	r := models.Reservation{ID: "R1", TripID: "T1", SeatIDs: []string{"1A"}, State: models.ReservationPending}
	if err := s.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, r); !domain.IsConflict(err) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}

	r.State = models.ReservationConfirmed
	if err := s.Update(ctx, r, models.ReservationPending); err != nil {
		t.Fatalf("update: %v", err)
	}
	r.State = models.ReservationExpired
	if err := s.Update(ctx, r, models.ReservationPending); !domain.IsConflict(err) {
		t.Fatalf("expected stale update conflict, got %v", err)
	}
	got, _ := s.Get(ctx, "R1")
	if got.State != models.ReservationConfirmed {
		t.Fatalf("unexpected state %s", got.State)
	}
}

func TestMemoryReservationStoreListPendingExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryReservationStore()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	_ = s.Create(ctx, models.Reservation{ID: "late", State: models.ReservationPending, ExpiresAt: now})
	_ = s.Create(ctx, models.Reservation{ID: "early", State: models.ReservationPending, ExpiresAt: now.Add(-time.Minute)})
	_ = s.Create(ctx, models.Reservation{ID: "alive", State: models.ReservationPending, ExpiresAt: now.Add(time.Second)})
	_ = s.Create(ctx, models.Reservation{ID: "done", State: models.ReservationConfirmed, ExpiresAt: now.Add(-time.Hour)})

	got, err := s.ListPendingExpired(ctx, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("unexpected expired list: %+v", got)
	}
}

func TestMemoryLedgerStoreIdempotentAppend(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLedgerStore()
	tx := models.LedgerTransaction{ID: "tx1", AccountID: "A", Type: models.TxTopUp, Amount: 100, Status: models.TxCompleted, IdempotencyKey: "k1"}
	if _, dup, err := s.Append(ctx, tx, false); err != nil || dup {
		t.Fatalf("first append: dup=%v err=%v", dup, err)
	}
	tx.ID = "tx2"
	stored, dup, err := s.Append(ctx, tx, false)
	if err != nil || !dup || stored.ID != "tx1" {
		t.Fatalf("replay should return tx1: %+v dup=%v err=%v", stored, dup, err)
	}
	bal, _ := s.Balance(ctx, "A")
	if bal != 100 {
		t.Fatalf("balance %d", bal)
	}
	if bal, _ := s.Balance(ctx, "nobody"); bal != 0 {
		t.Fatalf("unknown account balance %d", bal)
	}
}

func TestMemoryLedgerStoreGuardNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLedgerStore()
	_, _, _ = s.Append(ctx, models.LedgerTransaction{ID: "seed", AccountID: "A", Type: models.TxTopUp, Amount: 1000, Status: models.TxCompleted, IdempotencyKey: "seed"}, false)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("p%d", i)
			_, _, _ = s.Append(ctx, models.LedgerTransaction{ID: key, AccountID: "A", Type: models.TxPurchase, Amount: -70, Status: models.TxCompleted, IdempotencyKey: key}, true)
		}(i)
	}
	wg.Wait()

	bal, _ := s.Balance(ctx, "A")
	txs, _ := s.List(ctx, "A")
	if bal < 0 {
		t.Fatalf("balance went negative: %d", bal)
	}
	if bal != models.Balance(txs) {
		t.Fatalf("running balance %d differs from fold %d", bal, models.Balance(txs))
	}
	if bal != 1000-14*70 {
		t.Fatalf("expected 14 purchases to fit, balance %d", bal)
	}
}
