package workflows

import (
	"context"
	"testing"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/repositories"
	"bustix/internal/services"
	"bustix/internal/temporal/activities"

	"go.temporal.io/sdk/testsuite"
)

func newReservationFixture(t *testing.T, env *testsuite.TestWorkflowEnvironment) (*services.ReservationService, models.Reservation) {
	t.Helper()
	inv := services.InventoryService{Store: repositories.NewMemorySeatStore(), Now: env.Now}
	ledger := services.LedgerService{Store: repositories.NewMemoryLedgerStore(), Now: env.Now}
	res := services.NewReservationService(repositories.NewMemoryReservationStore(), inv, ledger, 7*time.Minute)
	res.Now = env.Now

	ctx := context.Background()
	if _, err := inv.RegisterTrip(ctx, models.Trip{ID: "T1", RouteFrom: "A", RouteTo: "B", BasePrice: 4500}, []string{"1A"}); err != nil {
		t.Fatalf("register trip: %v", err)
	}
	r, err := res.RequestHold(ctx, "T1", []string{"1A"}, "acc-1")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	sweeper := services.Sweeper{Reservations: res, Inventory: inv, Now: env.Now}
	env.RegisterActivity(activities.NewReservationActivities(res, sweeper))
	return res, r
}

func TestHoldExpiryWorkflowExpiresAfterDeadline(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	res, r := newReservationFixture(t, env)

	env.ExecuteWorkflow(HoldExpiryWorkflow, HoldExpiryInput{ReservationID: r.ID, ExpiresAt: r.ExpiresAt})
	if !env.IsWorkflowCompleted() {
		t.Fatalf("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result HoldExpiryResult
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !result.Expired || result.Settled {
		t.Fatalf("unexpected result %+v", result)
	}
	got, _ := res.Get(context.Background(), r.ID)
	if got.State != models.ReservationExpired {
		t.Fatalf("reservation state = %s", got.State)
	}
}

func TestHoldExpiryWorkflowStopsOnSettled(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	res, r := newReservationFixture(t, env)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(SignalSettled, r.ID)
	}, time.Minute)

	env.ExecuteWorkflow(HoldExpiryWorkflow, HoldExpiryInput{ReservationID: r.ID, ExpiresAt: r.ExpiresAt})
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var result HoldExpiryResult
	if err := env.GetWorkflowResult(&result); err != nil {
		t.Fatalf("result: %v", err)
	}
	if !result.Settled || result.Expired {
		t.Fatalf("unexpected result %+v", result)
	}
	got, _ := res.Reservations.Get(context.Background(), r.ID)
	if got.State != models.ReservationPending {
		t.Fatalf("settled signal must not expire the reservation, state = %s", got.State)
	}
}

func TestHoldSweepWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	newReservationFixture(t, env)

	env.ExecuteWorkflow(HoldSweepWorkflow)
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out activities.SweepResult
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.ExpiredReservations != 0 {
		t.Fatalf("nothing is due yet, got %+v", out)
	}
}
