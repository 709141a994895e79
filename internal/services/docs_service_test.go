package services

import (
	"context"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

func TestDocsServiceGenerate(t *testing.T) {
	loader := func(_ context.Context, id string) (ticketDocData, error) {
		return ticketDocData{
			ReservationID: id,
			AccountID:     "acc-1",
			TripID:        "T1",
			RouteFrom:     "CityA",
			RouteTo:       "CityB",
			DepartureAt:   "2025-01-02 10:00:00",
			BusRef:        "B123",
			SeatIDs:       []string{"1A", "1B"},
			PricePerSeat:  4500,
			Amount:        9000,
			PurchaseTxID:  "tx-1",
		}, nil
	}

	svc := DocsService{Loader: loader}

	pdf, filename, err := svc.GenerateETicket(context.Background(), "R1")
	if err != nil {
		t.Fatalf("GenerateETicket returned error: %v", err)
	}
	if len(pdf) == 0 || filename == "" {
		t.Fatalf("GenerateETicket returned empty data")
	}

	receipt, name, err := svc.GenerateReceipt(context.Background(), "R1")
	if err != nil {
		t.Fatalf("GenerateReceipt returned error: %v", err)
	}
	if len(receipt) == 0 || name == "" {
		t.Fatalf("GenerateReceipt returned empty data")
	}
}

func TestDocsServiceRequiresConfirmed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 4500, "1A")
	h.topUp(t, "acc-1", 10000)
	r, _ := h.res.RequestHold(ctx, "T1", []string{"1A"}, "acc-1")

	svc := DocsService{Reservations: h.res, Inventory: h.inv}
	if _, _, err := svc.GenerateETicket(ctx, r.ID); !domain.IsConflict(err) {
		t.Fatalf("pending reservation should conflict, got %v", err)
	}
	if _, err := h.res.ConfirmAndPay(ctx, r.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	pdf, _, err := svc.GenerateETicket(ctx, r.ID)
	if err != nil || len(pdf) == 0 {
		t.Fatalf("e-ticket for confirmed reservation: %v", err)
	}
}

func TestSweeperRunOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.trip(t, "T1", 100, "1A", "1B")
	r, _ := h.res.RequestHold(ctx, "T1", []string{"1A", "1B"}, "acc-1")
	h.clock.Advance(10 * time.Minute)

	sw := Sweeper{Reservations: h.res, Inventory: h.inv, Now: h.clock.Now}
	report, err := sw.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.ExpiredReservations != 1 {
		t.Fatalf("expected one expired reservation, got %+v", report)
	}
	got, _ := h.res.Get(ctx, r.ID)
	if got.State != models.ReservationExpired {
		t.Fatalf("state = %s", got.State)
	}
}
