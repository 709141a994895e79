package services

import (
	"context"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

func TestHoldIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "A", "B")

	if _, err := h.inv.Hold(ctx, "T1", []string{"A"}, "R1", time.Minute); err != nil {
		t.Fatalf("hold A: %v", err)
	}
	_, err := h.inv.Hold(ctx, "T1", []string{"A", "B"}, "R2", time.Minute)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if st := h.seat(t, "T1", "B"); st.Status != models.SeatAvailable || st.HolderID != "" {
		t.Fatalf("B must be untouched: %+v", st)
	}

	_, err = h.inv.Hold(ctx, "T1", []string{"B", "Z9"}, "R3", time.Minute)
	if !domain.IsNotFound(err) {
		t.Fatalf("unknown seat should be not found, got %v", err)
	}
	if st := h.seat(t, "T1", "B"); st.Status != models.SeatAvailable {
		t.Fatalf("B must be untouched after unknown seat: %+v", st)
	}
}

func TestExpiredHoldIsReclaimedLazily(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "A")

	if _, err := h.inv.Hold(ctx, "T1", []string{"A"}, "R1", time.Minute); err != nil {
		t.Fatalf("hold: %v", err)
	}
	h.clock.Advance(time.Minute)
	if st := h.seat(t, "T1", "A"); st.Status != models.SeatAvailable {
		t.Fatalf("expired hold should read as available: %+v", st)
	}
	if _, err := h.inv.Hold(ctx, "T1", []string{"A"}, "R2", time.Minute); err != nil {
		t.Fatalf("hold over expired seat: %v", err)
	}
	if err := h.inv.Confirm(ctx, "R1"); !domain.IsNotFound(err) {
		t.Fatalf("stale reservation must not resurrect its hold, got %v", err)
	}
	if err := h.inv.Confirm(ctx, "R2"); err != nil {
		t.Fatalf("confirm R2: %v", err)
	}
}

func TestConfirmExpiredReleasesSeats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "A", "B")

	_, _ = h.inv.Hold(ctx, "T1", []string{"A", "B"}, "R1", time.Minute)
	h.clock.Advance(2 * time.Minute)
	if err := h.inv.Confirm(ctx, "R1"); !domain.IsExpired(err) {
		t.Fatalf("expected expired, got %v", err)
	}
	seats, _ := h.inv.Store.ListSeats(ctx, "T1")
	for _, st := range seats {
		if st.Status != models.SeatAvailable || st.HolderID != "" {
			t.Fatalf("seat not released: %+v", st)
		}
	}
}

func TestReleaseAndCancelBooking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "A", "B")

	_, _ = h.inv.Hold(ctx, "T1", []string{"A"}, "R1", time.Minute)
	if err := h.inv.Confirm(ctx, "R1"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := h.inv.Release(ctx, "R1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if st := h.seat(t, "T1", "A"); st.Status != models.SeatBooked {
		t.Fatalf("release must not touch booked seats: %+v", st)
	}
	if err := h.inv.Release(ctx, "never-held"); err != nil {
		t.Fatalf("release of unknown reservation should be a no-op: %v", err)
	}
	if err := h.inv.CancelBooking(ctx, "R1"); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if st := h.seat(t, "T1", "A"); st.Status != models.SeatAvailable {
		t.Fatalf("cancel booking should free the seat: %+v", st)
	}
	if err := h.inv.CancelBooking(ctx, "R1"); !domain.IsNotFound(err) {
		t.Fatalf("second cancel booking should be not found, got %v", err)
	}
}

func TestSweepUsesSameExpiryPredicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "A", "B")
	h.trip(t, "T2", 100, "A")

	_, _ = h.inv.Hold(ctx, "T1", []string{"A"}, "R1", time.Minute)
	_, _ = h.inv.Hold(ctx, "T1", []string{"B"}, "R2", 2*time.Minute)
	_, _ = h.inv.Hold(ctx, "T2", []string{"A"}, "R3", time.Minute)

	h.clock.Advance(time.Minute)
	reclaimed, err := h.inv.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(reclaimed) != 2 || reclaimed[0] != "R1" || reclaimed[1] != "R3" {
		t.Fatalf("unexpected reclaimed holders: %v", reclaimed)
	}
	if st := h.seat(t, "T1", "B"); st.Status != models.SeatHeld {
		t.Fatalf("R2 still has time left: %+v", st)
	}
}

func TestRegisterTripValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.inv.RegisterTrip(ctx, models.Trip{ID: "T1", BasePrice: 100}, nil); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := h.inv.RegisterTrip(ctx, models.Trip{ID: "T1"}, []string{"A"}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for price, got %v", err)
	}
	h.trip(t, "T1", 100, "A")
	if _, err := h.inv.RegisterTrip(ctx, models.Trip{ID: "T1", BasePrice: 100}, []string{"A"}); !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
