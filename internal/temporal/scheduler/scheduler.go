package scheduler

import (
	"context"
	"errors"
	"time"

	"bustix/internal/temporal/workflows"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Scheduler starts one HoldExpiryWorkflow per pending reservation.
type Scheduler struct {
	Client    client.Client
	TaskQueue string
}

func WorkflowID(reservationID string) string {
	return "hold-expiry-" + reservationID
}

func (s Scheduler) ScheduleExpiry(ctx context.Context, reservationID string, expiresAt time.Time) error {
	_, err := s.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(reservationID),
		TaskQueue: s.TaskQueue,
	}, workflows.HoldExpiryWorkflow, workflows.HoldExpiryInput{
		ReservationID: reservationID,
		ExpiresAt:     expiresAt,
	})
	return err
}

// Settled stops the expiry timer. A workflow that already finished is fine.
func (s Scheduler) Settled(ctx context.Context, reservationID string) error {
	err := s.Client.SignalWorkflow(ctx, WorkflowID(reservationID), "", workflows.SignalSettled, reservationID)
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}
