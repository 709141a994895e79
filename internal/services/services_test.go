package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/repositories"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	settled   []string
}

func (f *fakeScheduler) ScheduleExpiry(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduled == nil {
		f.scheduled = map[string]time.Time{}
	}
	f.scheduled[id] = at
	return nil
}

func (f *fakeScheduler) Settled(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled = append(f.settled, id)
	return nil
}

type harness struct {
	clock  *fakeClock
	inv    InventoryService
	ledger LedgerService
	res    *ReservationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := newFakeClock()
	var seq int64
	inv := InventoryService{Store: repositories.NewMemorySeatStore(), Now: clock.Now}
	ledger := LedgerService{Store: repositories.NewMemoryLedgerStore(), Now: clock.Now}
	res := NewReservationService(repositories.NewMemoryReservationStore(), inv, ledger, 7*time.Minute)
	res.Now = clock.Now
	res.NewID = func() string { return fmt.Sprintf("R%d", atomic.AddInt64(&seq, 1)) }
	return &harness{clock: clock, inv: inv, ledger: ledger, res: res}
}

func (h *harness) trip(t *testing.T, id string, price int64, seats ...string) {
	t.Helper()
	trip := models.Trip{ID: id, RouteFrom: "Medan", RouteTo: "Pematangsiantar", DepartureAt: h.clock.Now().Add(24 * time.Hour), BusRef: "BK-7001", BasePrice: price}
	if _, err := h.inv.RegisterTrip(context.Background(), trip, seats); err != nil {
		t.Fatalf("register trip: %v", err)
	}
}

func (h *harness) topUp(t *testing.T, account string, amount int64) {
	t.Helper()
	_, err := h.ledger.Append(context.Background(), models.LedgerRequest{
		AccountID: account, Type: models.TxTopUp, Amount: amount, IdempotencyKey: "seed:" + account,
	})
	if err != nil {
		t.Fatalf("top up: %v", err)
	}
}

func (h *harness) balance(t *testing.T, account string) int64 {
	t.Helper()
	bal, err := h.ledger.BalanceOf(context.Background(), account)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (h *harness) seat(t *testing.T, tripID, seatID string) models.SeatState {
	t.Helper()
	seats, err := h.inv.SeatMap(context.Background(), tripID)
	if err != nil {
		t.Fatalf("seat map: %v", err)
	}
	for _, st := range seats {
		if st.SeatID == seatID {
			return st
		}
	}
	t.Fatalf("seat %s not found on %s", seatID, tripID)
	return models.SeatState{}
}
