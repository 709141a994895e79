package activities

import (
	"context"

	"bustix/internal/domain"
	"bustix/internal/services"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

type ReservationActivities struct {
	reservations *services.ReservationService
	sweeper      services.Sweeper
}

// SweepResult mirrors services.SweepReport for workflow payloads.
type SweepResult struct {
	ExpiredReservations int      `json:"expired_reservations"`
	ReclaimedHolders    []string `json:"reclaimed_holders"`
}

func NewReservationActivities(reservations *services.ReservationService, sweeper services.Sweeper) *ReservationActivities {
	return &ReservationActivities{reservations: reservations, sweeper: sweeper}
}

// ExpireReservation expires a pending reservation whose hold lapsed. It
// returns false when the reservation already settled.
func (a *ReservationActivities) ExpireReservation(ctx context.Context, reservationID string) (bool, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Expiring reservation", "reservationID", reservationID)

	expired, err := a.reservations.ExpireReservation(ctx, reservationID)
	if err != nil {
		if domain.IsNotFound(err) {
			return false, temporal.NewNonRetryableApplicationError("reservation not found", "NotFound", err)
		}
		return false, err
	}
	logger.Info("Expire reservation finished", "reservationID", reservationID, "expired", expired)
	return expired, nil
}

func (a *ReservationActivities) SweepHolds(ctx context.Context) (SweepResult, error) {
	report, err := a.sweeper.RunOnce(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	return SweepResult{ExpiredReservations: report.ExpiredReservations, ReclaimedHolders: report.ReclaimedHolders}, nil
}
