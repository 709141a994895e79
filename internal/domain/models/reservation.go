package models

import "time"

type ReservationState string

const (
	ReservationPending   ReservationState = "pending"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationExpired   ReservationState = "expired"
	ReservationCancelled ReservationState = "cancelled"
)

// Terminal reports whether no forward transition exists from s.
func (s ReservationState) Terminal() bool {
	return s == ReservationExpired || s == ReservationCancelled
}

// Reservation is an in-flight or completed seat hold.
type Reservation struct {
	ID           string           `json:"id"`
	TripID       string           `json:"trip_id"`
	SeatIDs      []string         `json:"seat_ids"`
	AccountID    string           `json:"account_id"`
	PlacedBy     string           `json:"placed_by,omitempty"`
	State        ReservationState `json:"state"`
	Amount       int64            `json:"amount"`
	PurchaseTxID string           `json:"purchase_tx_id,omitempty"`
	RefundTxID   string           `json:"refund_tx_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Paid reports whether a purchase was appended for the reservation.
func (r Reservation) Paid() bool {
	return r.PurchaseTxID != ""
}
