package app

import (
	"context"
	"fmt"

	intconfig "bustix/internal/config"
	"bustix/internal/repositories"
	"bustix/internal/services"
	"bustix/internal/utils"
)

// Services is the wired service graph shared by the API server and the worker.
type Services struct {
	Inventory    services.InventoryService
	Ledger       services.LedgerService
	Deposits     services.DepositService
	Reservations *services.ReservationService
	Sweeper      services.Sweeper
	Persistent   bool
}

// Build wires the services on MySQL when env.DBDSN is set, otherwise on the
// in-memory stores.
func Build(ctx context.Context, env intconfig.Env) (*Services, error) {
	var (
		seats        repositories.SeatStore
		reservations repositories.ReservationStore
		ledger       repositories.LedgerStore
		persistent   bool
	)

	if env.DBDSN != "" {
		db, err := intconfig.ConnectDB(env.DBDSN)
		if err != nil {
			return nil, err
		}
		if err := repositories.EnsureSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		seats = repositories.SeatRepository{DB: db}
		reservations = repositories.ReservationRepository{DB: db}
		ledger = repositories.LedgerRepository{DB: db}
		persistent = true
	} else {
		utils.Logger().Warn("DB_DSN kosong, memakai penyimpanan in-memory")
		seats = repositories.NewMemorySeatStore()
		reservations = repositories.NewMemoryReservationStore()
		ledger = repositories.NewMemoryLedgerStore()
	}

	inv := services.InventoryService{Store: seats}
	led := services.LedgerService{Store: ledger}
	res := services.NewReservationService(reservations, inv, led, env.HoldTTL)

	return &Services{
		Inventory:    inv,
		Ledger:       led,
		Deposits:     services.DepositService{Ledger: led, CommissionBPS: env.CommissionBPS},
		Reservations: res,
		Sweeper: services.Sweeper{
			Reservations: res,
			Inventory:    inv,
			Interval:     env.SweepInterval,
		},
		Persistent: persistent,
	}, nil
}
