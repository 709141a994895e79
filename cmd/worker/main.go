package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bustix/internal/app"
	intconfig "bustix/internal/config"
	"bustix/internal/temporal/activities"
	"bustix/internal/temporal/workflows"
	"bustix/internal/utils"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const sweepWorkflowID = "hold-sweep"

func main() {
	// Load configuration
	env := intconfig.LoadEnv()
	log := utils.InitLogger(env.LogLevel, env.LogFormat)
	if env.DBDSN == "" {
		log.Fatal("DB_DSN wajib diisi: worker harus berbagi database dengan API server")
	}
	if env.TemporalAddress == "" {
		log.Fatal("TEMPORAL_ADDRESS wajib diisi")
	}

	ctx := context.Background()
	svc, err := app.Build(ctx, env)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}
	defer intconfig.CloseDB()

	// Connect to Temporal
	temporalClient, err := client.Dial(client.Options{
		HostPort: env.TemporalAddress,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer temporalClient.Close()

	log.Info("Connected to Temporal")

	w := worker.New(temporalClient, env.TemporalTaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.HoldExpiryWorkflow)
	w.RegisterWorkflow(workflows.HoldSweepWorkflow)

	reservationActivities := activities.NewReservationActivities(svc.Reservations, svc.Sweeper)
	w.RegisterActivity(reservationActivities.ExpireReservation)
	w.RegisterActivity(reservationActivities.SweepHolds)

	if err := w.Start(); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	log.Info("Worker started successfully")

	// Periodic sweep; the existing run is reused when the worker restarts.
	_, err = temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           sweepWorkflowID,
		TaskQueue:    env.TemporalTaskQueue,
		CronSchedule: "@every 1m",
	}, workflows.HoldSweepWorkflow)
	if err != nil {
		log.Warnf("Failed to start sweep workflow: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	w.Stop()
	log.Info("Worker stopped")
}
