package workflows

import (
	"time"

	"bustix/internal/temporal/activities"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	SignalSettled = "settled"
	QueryStatus   = "status"
)

type HoldExpiryInput struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type HoldExpiryResult struct {
	ReservationID string `json:"reservation_id"`
	Settled       bool   `json:"settled"`
	Expired       bool   `json:"expired"`
}

// HoldExpiryWorkflow waits until the hold deadline and then expires the
// reservation, unless a settled signal arrives first.
func HoldExpiryWorkflow(ctx workflow.Context, input HoldExpiryInput) (*HoldExpiryResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("HoldExpiryWorkflow started", "reservationID", input.ReservationID, "expiresAt", input.ExpiresAt)

	result := &HoldExpiryResult{ReservationID: input.ReservationID}
	status := "waiting"
	if err := workflow.SetQueryHandler(ctx, QueryStatus, func() (string, error) {
		return status, nil
	}); err != nil {
		return nil, err
	}

	wait := input.ExpiresAt.Sub(workflow.Now(ctx))
	if wait < 0 {
		wait = 0
	}
	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timerFuture := workflow.NewTimer(timerCtx, wait)
	settledChan := workflow.GetSignalChannel(ctx, SignalSettled)

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(settledChan, func(c workflow.ReceiveChannel, more bool) {
		var reservationID string
		c.Receive(ctx, &reservationID)
		logger.Info("Reservation settled before expiry", "reservationID", input.ReservationID)
		result.Settled = true
		cancelTimer()
	})
	selector.AddFuture(timerFuture, func(f workflow.Future) {
		if err := f.Get(ctx, nil); err != nil {
			logger.Info("Timer cancelled")
		}
	})
	selector.Select(ctx)

	if result.Settled {
		status = "settled"
		return result, nil
	}

	status = "expiring"
	activityCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	})

	var reservationActivities *activities.ReservationActivities
	var expired bool
	if err := workflow.ExecuteActivity(activityCtx, reservationActivities.ExpireReservation, input.ReservationID).Get(ctx, &expired); err != nil {
		logger.Error("Failed to expire reservation", "error", err)
		status = "failed"
		return result, err
	}
	result.Expired = expired
	status = "done"

	logger.Info("HoldExpiryWorkflow completed", "reservationID", input.ReservationID, "expired", expired)
	return result, nil
}

// HoldSweepWorkflow runs one sweep pass. The worker starts it on a cron
// schedule as a backstop for holds whose expiry workflow never started.
func HoldSweepWorkflow(ctx workflow.Context) (*activities.SweepResult, error) {
	activityCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
	})
	var reservationActivities *activities.ReservationActivities
	var out activities.SweepResult
	if err := workflow.ExecuteActivity(activityCtx, reservationActivities.SweepHolds).Get(ctx, &out); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("HoldSweepWorkflow completed", "expired", out.ExpiredReservations, "reclaimed", len(out.ReclaimedHolders))
	return &out, nil
}
