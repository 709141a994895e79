package models

import "time"

// Trip identifies a scheduled departure. Seats are seeded from SeatIDs when
// the trip is registered.
type Trip struct {
	ID          string    `json:"id"`
	RouteFrom   string    `json:"route_from"`
	RouteTo     string    `json:"route_to"`
	DepartureAt time.Time `json:"departure_at"`
	BusRef      string    `json:"bus_ref"`
	BasePrice   int64     `json:"base_price"`
	CreatedAt   time.Time `json:"created_at"`
}

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatBooked    SeatStatus = "booked"
)

// SeatState is one entry of a trip's seat map. HolderID references the
// reservation that owns the seat; the reservation keeps its own seat list.
type SeatState struct {
	SeatID    string     `json:"seat_id"`
	Status    SeatStatus `json:"status"`
	HolderID  string     `json:"holder_id,omitempty"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
}

// HoldExpired is the single expiry predicate shared by lazy reclaim, the
// sweeper and reservation expiry.
func HoldExpired(heldUntil time.Time, now time.Time) bool {
	return !now.Before(heldUntil)
}

// Reclaimable reports whether the seat is held past its deadline.
func (s SeatState) Reclaimable(now time.Time) bool {
	return s.Status == SeatHeld && s.HeldUntil != nil && HoldExpired(*s.HeldUntil, now)
}

// FreeAt reports whether a new hold may take the seat at now.
func (s SeatState) FreeAt(now time.Time) bool {
	return s.Status == SeatAvailable || s.Reclaimable(now)
}

// Available returns a blank seat entry.
func Available(seatID string) SeatState {
	return SeatState{SeatID: seatID, Status: SeatAvailable}
}

// View is the externally visible state: expired holds read as available.
func (s SeatState) View(now time.Time) SeatState {
	if s.Reclaimable(now) {
		return Available(s.SeatID)
	}
	return s
}
