package repositories

import (
	"context"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSeatRepositoryCreateTripSeedsSeatsInOneInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	trip := models.Trip{ID: "T1", RouteFrom: "Medan", RouteTo: "Parapat", BasePrice: 50000}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trips").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO seats \\(trip_id, seat_id, position, status\\) VALUES \\(\\?,\\?,\\?,\\?\\),\\(\\?,\\?,\\?,\\?\\)").
		WithArgs("T1", "1A", 0, "available", "T1", "1B", 1, "available").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := (SeatRepository{DB: db}).CreateTrip(context.Background(), trip, []string{"1A", "1B"}); err != nil {
		t.Fatalf("create trip: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeatRepositoryMutateTripWritesOnlyChangedSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	until := time.Date(2025, 1, 1, 8, 7, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM seats WHERE trip_id = \\? FOR UPDATE").WithArgs("T1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "status", "holder_id", "held_until"}).
			AddRow("1A", "available", nil, nil).
			AddRow("1B", "available", nil, nil))
	mock.ExpectExec("UPDATE seats").
		WithArgs("held", "R1", sqlmock.AnyArg(), "T1", "1A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := SeatRepository{DB: db}
	err = repo.MutateTrip(context.Background(), "T1", func(seats SeatMap) error {
		seats["1A"] = models.SeatState{SeatID: "1A", Status: models.SeatHeld, HolderID: "R1", HeldUntil: &until}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSeatRepositoryMutateUnknownTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("T404").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id", "status", "holder_id", "held_until"}))
	mock.ExpectRollback()

	err = SeatRepository{DB: db}.MutateTrip(context.Background(), "T404", func(SeatMap) error { return nil })
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepositoryAppendGuarded(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	tx := models.LedgerTransaction{
		ID: "tx1", AccountID: "A", Type: models.TxPurchase, Amount: -70,
		Status: models.TxCompleted, IdempotencyKey: "purchase:R1", LinkedReservationID: "R1", CreatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO wallet_accounts").WithArgs("A", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM wallet_accounts WHERE account_id = \\? FOR UPDATE").WithArgs("A").
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("A"))
	mock.ExpectQuery("FROM ledger_transactions WHERE account_id = \\? AND idempotency_key = \\?").
		WithArgs("A", "purchase:R1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SUM\\(amount\\)").WithArgs("A", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(100))
	mock.ExpectExec("INSERT INTO ledger_transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stored, dup, err := LedgerRepository{DB: db}.Append(context.Background(), tx, true)
	if err != nil || dup || stored.ID != "tx1" {
		t.Fatalf("append: %+v dup=%v err=%v", stored, dup, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepositoryAppendInsufficientFunds(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO wallet_accounts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("A"))
	mock.ExpectQuery("idempotency_key = \\?").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SUM\\(amount\\)").WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(30))
	mock.ExpectRollback()

	_, _, err = LedgerRepository{DB: db}.Append(context.Background(), models.LedgerTransaction{
		ID: "tx1", AccountID: "A", Type: models.TxPurchase, Amount: -70, Status: models.TxCompleted, IdempotencyKey: "k",
	}, true)
	if !domain.IsInsufficientFunds(err) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLedgerRepositoryAppendReturnsExistingForKnownKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT IGNORE INTO wallet_accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"account_id"}).AddRow("A"))
	mock.ExpectQuery("idempotency_key = \\?").WithArgs("A", "k1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "type", "amount", "status", "idempotency_key",
			"linked_reservation_id", "reverses_tx_id", "created_at",
		}).AddRow("tx-original", "A", "top-up", 100, "completed", "k1", "", "", created))
	mock.ExpectCommit()

	stored, dup, err := LedgerRepository{DB: db}.Append(context.Background(), models.LedgerTransaction{
		ID: "tx-new", AccountID: "A", Type: models.TxTopUp, Amount: 100, Status: models.TxCompleted, IdempotencyKey: "k1",
	}, false)
	if err != nil || !dup || stored.ID != "tx-original" {
		t.Fatalf("expected original back: %+v dup=%v err=%v", stored, dup, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReservationRepositoryStaleUpdateConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE reservations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT state FROM reservations WHERE id = \\?").WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("expired"))

	res := models.Reservation{ID: "R1", State: models.ReservationConfirmed}
	err = ReservationRepository{DB: db}.Update(context.Background(), res, models.ReservationPending)
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReservationRepositoryGetLoadsSeatsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM reservations WHERE id = \\?").WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "trip_id", "account_id", "placed_by", "state", "amount", "purchase_tx_id", "refund_tx_id",
			"created_at", "expires_at", "updated_at",
		}).AddRow("R1", "T1", "A", "AG1", "pending", 0, "", "", now, now.Add(7*time.Minute), now))
	mock.ExpectQuery("FROM reservation_seats").WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_id"}).AddRow("2B").AddRow("1A"))

	got, err := ReservationRepository{DB: db}.Get(context.Background(), "R1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != models.ReservationPending || got.PlacedBy != "AG1" || len(got.SeatIDs) != 2 || got.SeatIDs[0] != "2B" {
		t.Fatalf("unexpected reservation %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReservationRepositoryLockUsesNamedLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK\\(\\?, \\?\\)").WithArgs("bustix:reservation:R1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK\\(\\?\\)").WithArgs("bustix:reservation:R1").
		WillReturnRows(sqlmock.NewRows([]string{"released"}).AddRow(1))

	unlock, err := ReservationRepository{DB: db}.Lock(context.Background(), "R1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReservationRepositoryLockTimeoutIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("bustix:reservation:R1", 10).
		WillReturnRows(sqlmock.NewRows([]string{"got"}).AddRow(0))

	_, err = ReservationRepository{DB: db}.Lock(context.Background(), "R1")
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict when another process holds the lock, got %v", err)
	}
}

func TestLedgerRepositoryStatementReadsOneSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()

	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\)").WithArgs("A", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(700))
	mock.ExpectQuery("FROM ledger_transactions").WithArgs("A").
		WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "type", "amount", "status", "idempotency_key", "linked", "reverses", "created_at"}).
			AddRow("tx1", "A", "top-up", 1000, "completed", "k1", "", "", now).
			AddRow("tx2", "A", "purchase", -300, "completed", "purchase:R1", "R1", "", now))
	mock.ExpectCommit()

	balance, txs, err := LedgerRepository{DB: db}.Statement(context.Background(), "A")
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if balance != 700 || len(txs) != 2 || models.Balance(txs) != balance {
		t.Fatalf("balance=%d txs=%d fold=%d", balance, len(txs), models.Balance(txs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
