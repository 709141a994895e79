package services

import (
	"context"
	"fmt"
	"time"

	"bustix/internal/utils"
)

// Sweeper reclaims lapsed holds on a fixed interval. Correctness never depends
// on it: every operation re-checks expiry with the same predicate.
type Sweeper struct {
	Reservations *ReservationService
	Inventory    InventoryService
	Interval     time.Duration
	Now          func() time.Time
}

type SweepReport struct {
	ExpiredReservations int      `json:"expired_reservations"`
	ReclaimedHolders    []string `json:"reclaimed_holders"`
}

func (s Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// RunOnce expires due reservations, then reclaims any expired seat holds
// left without a pending reservation.
func (s Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	n, err := s.Reservations.ExpireDue(ctx, s.now())
	report.ExpiredReservations = n
	if err != nil {
		return report, err
	}
	holders, err := s.Inventory.Sweep(ctx)
	report.ReclaimedHolders = holders
	return report, err
}

// Run sweeps until ctx is done.
func (s Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.RunOnce(ctx)
			if err != nil {
				utils.LogWarn("", "sweeper", "run", "sweep failed: "+err.Error())
				continue
			}
			if report.ExpiredReservations > 0 || len(report.ReclaimedHolders) > 0 {
				utils.LogEvent("", "sweeper", "run", fmt.Sprintf("expired=%d reclaimed=%d", report.ExpiredReservations, len(report.ReclaimedHolders)))
			}
		}
	}
}
