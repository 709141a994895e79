package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	intconfig "bustix/internal/config"
	intdb "bustix/internal/db"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

// SeatRepository is the MySQL SeatStore. MutateTrip locks every seat row of
// the trip with SELECT ... FOR UPDATE, so holds on one trip serialize while
// other trips proceed.
type SeatRepository struct {
	DB *sql.DB
}

func (r SeatRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

func (r SeatRepository) CreateTrip(ctx context.Context, trip models.Trip, seatIDs []string) error {
	return intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trips (id, route_from, route_to, departure_at, bus_ref, base_price, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, trip.ID, trip.RouteFrom, trip.RouteTo, trip.DepartureAt, trip.BusRef, trip.BasePrice, trip.CreatedAt)
		if err != nil {
			if intdb.IsDuplicateKey(err) {
				return domain.ConflictError{Resource: "trip", Msg: "trip " + trip.ID + " already registered", Err: err}
			}
			return fmt.Errorf("failed to insert trip: %w", err)
		}
		if len(seatIDs) == 0 {
			return nil
		}
		rows := make([]string, 0, len(seatIDs))
		args := make([]any, 0, 4*len(seatIDs))
		for i, seatID := range seatIDs {
			rows = append(rows, "("+intdb.Placeholders(4)+")")
			args = append(args, trip.ID, seatID, i, models.SeatAvailable)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO seats (trip_id, seat_id, position, status) VALUES `+strings.Join(rows, ","), args...); err != nil {
			return fmt.Errorf("failed to insert seats: %w", err)
		}
		return nil
	})
}

func (r SeatRepository) GetTrip(ctx context.Context, tripID string) (models.Trip, error) {
	var t models.Trip
	err := r.db().QueryRowContext(ctx, `
		SELECT id, route_from, route_to, departure_at, bus_ref, base_price, created_at
		FROM trips
		WHERE id = ?
	`, tripID).Scan(&t.ID, &t.RouteFrom, &t.RouteTo, &t.DepartureAt, &t.BusRef, &t.BasePrice, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Trip{}, domain.NotFoundError{Resource: "trip", ID: tripID, Err: err}
	}
	if err != nil {
		return models.Trip{}, fmt.Errorf("failed to get trip: %w", err)
	}
	return t, nil
}

func (r SeatRepository) ListSeats(ctx context.Context, tripID string) ([]models.SeatState, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT seat_id, status, holder_id, held_until
		FROM seats
		WHERE trip_id = ?
		ORDER BY position
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	seats, _, err := scanSeats(rows)
	if err != nil {
		return nil, err
	}
	if len(seats) == 0 {
		if _, err := r.GetTrip(ctx, tripID); err != nil {
			return nil, err
		}
	}
	return seats, nil
}

func (r SeatRepository) TripOfHolder(ctx context.Context, holderID string) (string, error) {
	var tripID string
	err := r.db().QueryRowContext(ctx, `SELECT trip_id FROM seats WHERE holder_id = ? LIMIT 1`, holderID).Scan(&tripID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFoundError{Resource: "reservation seats", ID: holderID, Err: err}
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up holder: %w", err)
	}
	return tripID, nil
}

func (r SeatRepository) TripsWithHolds(ctx context.Context) ([]string, error) {
	rows, err := r.db().QueryContext(ctx, `SELECT DISTINCT trip_id FROM seats WHERE status = ? ORDER BY trip_id`, models.SeatHeld)
	if err != nil {
		return nil, fmt.Errorf("failed to query held trips: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan trip id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r SeatRepository) MutateTrip(ctx context.Context, tripID string, fn func(seats SeatMap) error) error {
	return intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT seat_id, status, holder_id, held_until
			FROM seats
			WHERE trip_id = ?
			FOR UPDATE
		`, tripID)
		if err != nil {
			return fmt.Errorf("failed to lock seats: %w", err)
		}
		_, locked, err := scanSeats(rows)
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return domain.NotFoundError{Resource: "trip", ID: tripID}
		}

		before := locked.Clone()
		if err := fn(locked); err != nil {
			return err
		}

		ids := make([]string, 0, len(locked))
		for id := range locked {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			st := locked[id]
			if sameSeat(before[id], st) {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE seats
				SET status = ?, holder_id = ?, held_until = ?
				WHERE trip_id = ? AND seat_id = ?
			`, st.Status, intdb.NullIfEmpty(st.HolderID), intdb.NullTime(st.HeldUntil), tripID, id); err != nil {
				return fmt.Errorf("failed to update seat %s: %w", id, err)
			}
		}
		return nil
	})
}

func scanSeats(rows *sql.Rows) ([]models.SeatState, SeatMap, error) {
	defer rows.Close()
	list := []models.SeatState{}
	byID := SeatMap{}
	for rows.Next() {
		var (
			st        models.SeatState
			status    string
			holder    sql.NullString
			heldUntil sql.NullTime
		)
		if err := rows.Scan(&st.SeatID, &status, &holder, &heldUntil); err != nil {
			return nil, nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		st.Status = models.SeatStatus(status)
		st.HolderID = holder.String
		if heldUntil.Valid {
			t := heldUntil.Time
			st.HeldUntil = &t
		}
		list = append(list, st)
		byID[st.SeatID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read seats: %w", err)
	}
	return list, byID, nil
}

func sameSeat(a, b models.SeatState) bool {
	if a.Status != b.Status || a.HolderID != b.HolderID {
		return false
	}
	return sameTime(a.HeldUntil, b.HeldUntil)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
