package repositories

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	intconfig "bustix/internal/config"
	intdb "bustix/internal/db"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// lockWait bounds how long Lock waits for another process.
const lockWait = 10 * time.Second

type ReservationRepository struct {
	DB *sql.DB
}

func (r ReservationRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Lock takes a MySQL named lock for the reservation on a dedicated
// connection, so the API server, the sweeper and the expiry worker never
// work on the same reservation at once.
func (r ReservationRepository) Lock(ctx context.Context, id string) (func(), error) {
	db := r.db()
	if db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get lock connection: %w", err)
	}
	name := reservationLockName(id)
	var got sql.NullInt64
	if err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, int(lockWait/time.Second)).Scan(&got); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to lock reservation: %w", err)
	}
	if !got.Valid || got.Int64 != 1 {
		_ = conn.Close()
		return nil, domain.ConflictError{Resource: "reservation", Msg: "reservation " + id + " is busy, retry"}
	}
	return func() {
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.Background(), `SELECT RELEASE_LOCK(?)`, name).Scan(&released)
		_ = conn.Close()
	}, nil
}

// reservationLockName stays within MySQL's 64 character lock name limit.
func reservationLockName(id string) string {
	name := "bustix:reservation:" + id
	if len(name) <= 64 {
		return name
	}
	sum := sha1.Sum([]byte(id))
	return "bustix:reservation:" + hex.EncodeToString(sum[:])
}

func (r ReservationRepository) Create(ctx context.Context, res models.Reservation) error {
	return intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (id, trip_id, account_id, placed_by, state, amount, purchase_tx_id, refund_tx_id, created_at, expires_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, res.ID, res.TripID, res.AccountID, intdb.NullIfEmpty(res.PlacedBy), res.State, res.Amount,
			intdb.NullIfEmpty(res.PurchaseTxID), intdb.NullIfEmpty(res.RefundTxID),
			res.CreatedAt, res.ExpiresAt, res.UpdatedAt)
		if err != nil {
			if intdb.IsDuplicateKey(err) {
				return domain.ConflictError{Resource: "reservation", Msg: "duplicate id " + res.ID, Err: err}
			}
			return fmt.Errorf("failed to insert reservation: %w", err)
		}
		for i, seatID := range res.SeatIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO reservation_seats (reservation_id, seat_id, position)
				VALUES (?, ?, ?)
			`, res.ID, seatID, i); err != nil {
				return fmt.Errorf("failed to insert reservation seat: %w", err)
			}
		}
		return nil
	})
}

func (r ReservationRepository) Get(ctx context.Context, id string) (models.Reservation, error) {
	var (
		res   models.Reservation
		state string
	)
	err := r.db().QueryRowContext(ctx, `
		SELECT id, trip_id, account_id, COALESCE(placed_by, ''), state, amount,
		       COALESCE(purchase_tx_id, ''), COALESCE(refund_tx_id, ''),
		       created_at, expires_at, updated_at
		FROM reservations
		WHERE id = ?
	`, id).Scan(&res.ID, &res.TripID, &res.AccountID, &res.PlacedBy, &state, &res.Amount,
		&res.PurchaseTxID, &res.RefundTxID, &res.CreatedAt, &res.ExpiresAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Reservation{}, domain.NotFoundError{Resource: "reservation", ID: id, Err: err}
	}
	if err != nil {
		return models.Reservation{}, fmt.Errorf("failed to get reservation: %w", err)
	}
	res.State = models.ReservationState(state)

	rows, err := r.db().QueryContext(ctx, `
		SELECT seat_id
		FROM reservation_seats
		WHERE reservation_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return models.Reservation{}, fmt.Errorf("failed to query reservation seats: %w", err)
	}
	defer rows.Close()

	res.SeatIDs = []string{}
	for rows.Next() {
		var seatID string
		if err := rows.Scan(&seatID); err != nil {
			return models.Reservation{}, fmt.Errorf("failed to scan reservation seat: %w", err)
		}
		res.SeatIDs = append(res.SeatIDs, seatID)
	}
	return res, rows.Err()
}

func (r ReservationRepository) Update(ctx context.Context, res models.Reservation, from models.ReservationState) error {
	result, err := r.db().ExecContext(ctx, `
		UPDATE reservations
		SET state = ?, amount = ?, purchase_tx_id = ?, refund_tx_id = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, res.State, res.Amount, intdb.NullIfEmpty(res.PurchaseTxID), intdb.NullIfEmpty(res.RefundTxID),
		res.UpdatedAt, res.ID, from)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = r.db().QueryRowContext(ctx, `SELECT state FROM reservations WHERE id = ?`, res.ID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: "reservation", ID: res.ID, Err: err}
	}
	if err != nil {
		return fmt.Errorf("failed to read reservation state: %w", err)
	}
	if models.ReservationState(current) == res.State {
		// MySQL reports zero affected rows when nothing changed.
		return nil
	}
	return domain.ConflictError{Resource: "reservation", Msg: "state changed to " + current}
}

func (r ReservationRepository) ListPendingExpired(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id
		FROM reservations
		WHERE state = ? AND expires_at <= ?
		ORDER BY expires_at
	`, models.ReservationPending, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan reservation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}
