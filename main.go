package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bustix/internal/app"
	intconfig "bustix/internal/config"
	router "bustix/internal/http"
	h "bustix/internal/http/handlers"
	"bustix/internal/temporal/scheduler"
	"bustix/internal/utils"

	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
)

func main() {
	env := intconfig.LoadEnv()
	log := utils.InitLogger(env.LogLevel, env.LogFormat)
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, env)
	if err != nil {
		log.Fatalf("Gagal menyiapkan layanan: %v", err)
	}
	defer intconfig.CloseDB()

	// Expiry workflows need a worker that shares the database.
	if env.TemporalAddress != "" && svc.Persistent {
		temporalClient, err := client.Dial(client.Options{HostPort: env.TemporalAddress})
		if err != nil {
			log.Fatalf("Gagal membuat Temporal client: %v", err)
		}
		defer temporalClient.Close()
		svc.Reservations.Scheduler = scheduler.Scheduler{Client: temporalClient, TaskQueue: env.TemporalTaskQueue}
		log.Infof("Terhubung ke Temporal di %s", env.TemporalAddress)
	}

	go svc.Sweeper.Run(ctx)

	r := router.NewRouter(env, &h.API{
		Inventory:    svc.Inventory,
		Reservations: svc.Reservations,
		Ledger:       svc.Ledger,
		Deposits:     svc.Deposits,
	})

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof("Server berjalan di http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Gagal menjalankan server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Mematikan server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown server gagal: %v", err)
	}

	log.Info("Server berhenti dengan aman.")
}
